package planner

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SavingsRequest describes a goal to plan for. A zero TargetDate means the
// goal is open-ended.
type SavingsRequest struct {
	GoalAmount       decimal.Decimal
	CurrentSavings   decimal.Decimal
	MonthlyAvailable decimal.Decimal
	TargetDate       time.Time
}

// SavingsRecommendation is one suggested cut with its estimated monthly yield.
type SavingsRecommendation struct {
	Category         string
	PotentialSavings decimal.Decimal
	Advice           string
}

type SavingsPlan struct {
	RequiredMonthly decimal.Decimal
	MonthsToGoal    int
	Feasible        bool
	SuggestedRate   decimal.Decimal
	Recommendations []SavingsRecommendation
}

// ProjectSavings computes the monthly contribution needed to reach a goal.
//
// With a target date the contribution is the remaining amount spread over the
// whole calendar months between now and the date (at least one). Without one
// it is a default share of the monthly surplus and the month count follows
// from it. Infeasible plans carry expense-reduction suggestions.
func ProjectSavings(cfg Config, now time.Time, req SavingsRequest) (SavingsPlan, error) {
	if req.GoalAmount.IsNegative() || req.CurrentSavings.IsNegative() {
		return SavingsPlan{}, fmt.Errorf("%w: goal and current savings must not be negative", ErrInvalidInput)
	}

	remaining := req.GoalAmount.Sub(req.CurrentSavings)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	var plan SavingsPlan
	if !req.TargetDate.IsZero() {
		months := monthsBetween(now, req.TargetDate)
		required := remaining.Div(decimal.NewFromInt(int64(months)))
		plan = SavingsPlan{
			RequiredMonthly: required.Round(2),
			MonthsToGoal:    months,
			Feasible:        required.LessThanOrEqual(req.MonthlyAvailable),
			SuggestedRate:   cfg.rateFor(months),
		}
	} else {
		required := req.MonthlyAvailable.Mul(cfg.DefaultRate)
		plan = SavingsPlan{
			RequiredMonthly: required.Round(2),
			SuggestedRate:   cfg.DefaultRate,
			Feasible:        true,
		}
		switch {
		case remaining.IsZero():
		case !required.IsPositive():
			plan.Feasible = false
		default:
			plan.MonthsToGoal = int(remaining.Div(required).Ceil().IntPart())
		}
	}

	if !plan.Feasible {
		plan.Recommendations = cfg.suggestCuts(req.MonthlyAvailable)
	}
	return plan, nil
}

// monthsBetween counts whole calendar months from now to target, minimum 1.
func monthsBetween(now, target time.Time) int {
	ny, nm, nd := now.Date()
	ty, tm, td := target.Date()
	months := (ty-ny)*12 + int(tm-nm)
	if td < nd {
		months--
	}
	if months < 1 {
		return 1
	}
	return months
}

func (c Config) rateFor(months int) decimal.Decimal {
	switch {
	case months < c.ShortTermMonths:
		return c.AggressiveRate
	case months > c.LongTermMonths:
		return c.ConservativeRate
	default:
		return c.DefaultRate
	}
}

func (c Config) suggestCuts(monthly decimal.Decimal) []SavingsRecommendation {
	base := monthly
	if base.IsNegative() {
		base = decimal.Zero
	}
	out := make([]SavingsRecommendation, 0, len(c.SavingsSuggestions))
	for _, s := range c.SavingsSuggestions {
		out = append(out, SavingsRecommendation{
			Category:         s.Category,
			PotentialSavings: base.Mul(s.Fraction).Round(2),
			Advice:           s.Advice,
		})
	}
	return out
}
