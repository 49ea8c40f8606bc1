package planner

import (
	"github.com/shopspring/decimal"
)

// Trend is the fitted linear trend of one category's monthly spending.
type Trend struct {
	CurrentMonthly decimal.Decimal
	// Slope is the fitted change per month.
	Slope     decimal.Decimal
	Projected []decimal.Decimal
}

// PredictTrend fits an ordinary least-squares line through each category's
// monthly totals and extends it cfg.MonthsAhead months past the last point.
// Categories with fewer than cfg.MinMonthsForPrediction points are left out.
// Projections are floored at zero; growth is not capped.
func PredictTrend(cfg Config, series map[string][]decimal.Decimal) map[string]Trend {
	out := make(map[string]Trend)
	minPoints := cfg.MinMonthsForPrediction
	if minPoints < 2 {
		minPoints = 2
	}
	for category, points := range series {
		if len(points) < minPoints {
			continue
		}
		slope := olsSlope(points)
		last := points[len(points)-1]

		projected := make([]decimal.Decimal, 0, cfg.MonthsAhead)
		for i := 1; i <= cfg.MonthsAhead; i++ {
			v := last.Add(slope.Mul(decimal.NewFromInt(int64(i))))
			if v.IsNegative() {
				v = decimal.Zero
			}
			projected = append(projected, v.Round(2))
		}
		out[category] = Trend{
			CurrentMonthly: last,
			Slope:          slope.Round(4),
			Projected:      projected,
		}
	}
	return out
}

// olsSlope returns the least-squares slope of ys against x = 0..n-1.
func olsSlope(ys []decimal.Decimal) decimal.Decimal {
	n := decimal.NewFromInt(int64(len(ys)))
	meanX := decimal.NewFromInt(int64(len(ys) - 1)).Div(decimal.NewFromInt(2))
	meanY := decimal.Sum(decimal.Zero, ys...).Div(n)

	num, den := decimal.Zero, decimal.Zero
	for i, y := range ys {
		dx := decimal.NewFromInt(int64(i)).Sub(meanX)
		num = num.Add(dx.Mul(y.Sub(meanY)))
		den = den.Add(dx.Mul(dx))
	}
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
