package planner

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a single spending record as the planner sees it.
type Entry struct {
	ID          int64
	Category    string
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

type UnusualEntry struct {
	Entry
	ZScore float64
}

type SpendingPatterns struct {
	TotalSpent            decimal.Decimal
	AveragePerTransaction decimal.Decimal
	CategoryBreakdown     map[string]decimal.Decimal
	Unusual               []UnusualEntry
}

// AnalyzeSpendingPatterns summarises entries and flags those whose amount
// lies more than cfg.UnusualThreshold population standard deviations from
// the mean.
func AnalyzeSpendingPatterns(cfg Config, entries []Entry) SpendingPatterns {
	out := SpendingPatterns{
		TotalSpent:            decimal.Zero,
		AveragePerTransaction: decimal.Zero,
		CategoryBreakdown:     CategoryTotals(entries),
	}
	if len(entries) == 0 {
		return out
	}

	for _, e := range entries {
		out.TotalSpent = out.TotalSpent.Add(e.Amount)
	}
	out.AveragePerTransaction = out.TotalSpent.Div(decimal.NewFromInt(int64(len(entries)))).Round(2)

	// z-scores need a square root, so they are computed in float64.
	amounts := make([]float64, len(entries))
	var mean float64
	for i, e := range entries {
		amounts[i] = e.Amount.InexactFloat64()
		mean += amounts[i]
	}
	mean /= float64(len(amounts))
	var variance float64
	for _, a := range amounts {
		variance += (a - mean) * (a - mean)
	}
	std := math.Sqrt(variance / float64(len(amounts)))
	if std == 0 {
		return out
	}
	for i, e := range entries {
		z := (amounts[i] - mean) / std
		if math.Abs(z) > cfg.UnusualThreshold {
			out.Unusual = append(out.Unusual, UnusualEntry{Entry: e, ZScore: z})
		}
	}
	return out
}

// MonthlySeries groups entries by category and calendar month and returns the
// monthly totals of each category in chronological order. Months without
// spending in a category are not represented.
func MonthlySeries(entries []Entry) map[string][]decimal.Decimal {
	byCat := make(map[string]map[string]decimal.Decimal)
	for _, e := range entries {
		months, ok := byCat[e.Category]
		if !ok {
			months = make(map[string]decimal.Decimal)
			byCat[e.Category] = months
		}
		key := e.Date.Format("2006-01")
		months[key] = months[key].Add(e.Amount)
	}

	out := make(map[string][]decimal.Decimal, len(byCat))
	for category, months := range byCat {
		series := make([]decimal.Decimal, 0, len(months))
		for _, key := range sortedKeys(months) {
			series = append(series, months[key])
		}
		out[category] = series
	}
	return out
}

// CategoryTotals sums entry amounts per category.
func CategoryTotals(entries []Entry) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range entries {
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
