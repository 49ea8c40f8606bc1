// Package planner holds the budget-allocation and savings-projection arithmetic
// behind the advisor endpoints.
//
// Every function is a pure computation over already-fetched records: no I/O,
// no package-level state. Tunables travel in an explicit Config value so the
// same inputs always produce the same outputs.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for out-of-range numeric input such as a
// non-positive income or budget.
var ErrInvalidInput = errors.New("planner: invalid input")

// Bucket is one side of the needs/wants/savings budget split.
type Bucket string

const (
	Needs   Bucket = "needs"
	Wants   Bucket = "wants"
	Savings Bucket = "savings"
)

// Buckets lists the buckets in reporting order.
var Buckets = []Bucket{Needs, Wants, Savings}

// Rule holds target fractions of income per bucket; they sum to 1.
type Rule struct {
	Needs   decimal.Decimal
	Wants   decimal.Decimal
	Savings decimal.Decimal
}

// Target returns the target fraction for b.
func (r Rule) Target(b Bucket) decimal.Decimal {
	switch b {
	case Needs:
		return r.Needs
	case Wants:
		return r.Wants
	default:
		return r.Savings
	}
}

// Suggestion is a canned expense-reduction idea sized as a fraction of the
// monthly surplus.
type Suggestion struct {
	Category string
	Fraction decimal.Decimal
	Advice   string
}

// Config is treated as immutable once built: functions read it, never write.
type Config struct {
	NeedsCategories   []string
	WantsCategories   []string
	SavingsCategories []string

	Rule Rule

	// UnusualThreshold is the absolute z-score above which a transaction is unusual.
	UnusualThreshold float64

	MinMonthsForPrediction int
	MonthsAhead            int

	// RoleWeights multiplies a member's base weight of 1.0 by role.
	RoleWeights        map[string]decimal.Decimal
	SpecialNeedsWeight decimal.Decimal

	DefaultRate      decimal.Decimal
	AggressiveRate   decimal.Decimal
	ConservativeRate decimal.Decimal
	// Goals closer than ShortTermMonths get the aggressive rate, goals further
	// than LongTermMonths the conservative one.
	ShortTermMonths int
	LongTermMonths  int

	SavingsSuggestions []Suggestion
}

// DefaultConfig returns the stock 50/30/20 configuration.
func DefaultConfig() Config {
	return Config{
		NeedsCategories:   []string{"Housing", "Utilities", "Groceries", "Transportation", "Insurance", "Healthcare"},
		WantsCategories:   []string{"Entertainment", "Shopping", "Dining", "Hobbies", "Travel", "Personal Care"},
		SavingsCategories: []string{"Savings", "Investments", "Debt Payment", "Emergency Fund", "Retirement"},
		Rule: Rule{
			Needs:   decimal.RequireFromString("0.5"),
			Wants:   decimal.RequireFromString("0.3"),
			Savings: decimal.RequireFromString("0.2"),
		},
		UnusualThreshold:       2.0,
		MinMonthsForPrediction: 3,
		MonthsAhead:            3,
		RoleWeights: map[string]decimal.Decimal{
			"primary_earner": decimal.RequireFromString("1.2"),
			"dependent":      decimal.RequireFromString("0.8"),
		},
		SpecialNeedsWeight: decimal.RequireFromString("1.3"),
		DefaultRate:        decimal.RequireFromString("0.2"),
		AggressiveRate:     decimal.RequireFromString("0.4"),
		ConservativeRate:   decimal.RequireFromString("0.1"),
		ShortTermMonths:    12,
		LongTermMonths:     36,
		SavingsSuggestions: []Suggestion{
			{Category: "Subscriptions", Fraction: decimal.RequireFromString("0.05"), Advice: "Review and cancel unused subscriptions"},
			{Category: "Dining Out", Fraction: decimal.RequireFromString("0.1"), Advice: "Cook more meals at home"},
			{Category: "Utilities", Fraction: decimal.RequireFromString("0.03"), Advice: "Implement energy-saving measures"},
		},
	}
}

// WithHorizon returns a copy of c with different prediction bounds.
func (c Config) WithHorizon(minMonths, monthsAhead int) Config {
	c.MinMonthsForPrediction = minMonths
	c.MonthsAhead = monthsAhead
	return c
}

// Validate reports every inconsistency in the configuration at once.
func (c Config) Validate() error {
	var problems []string

	one := decimal.NewFromInt(1)
	sum := c.Rule.Needs.Add(c.Rule.Wants).Add(c.Rule.Savings)
	if sum.Sub(one).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		problems = append(problems, fmt.Sprintf("allocation rule fractions must sum to 1, got %s", sum))
	}
	for _, b := range Buckets {
		if c.Rule.Target(b).IsNegative() {
			problems = append(problems, fmt.Sprintf("%s fraction must not be negative", b))
		}
	}
	for role, w := range c.RoleWeights {
		if !w.IsPositive() {
			problems = append(problems, fmt.Sprintf("weight for role %q must be positive", role))
		}
	}
	if !c.SpecialNeedsWeight.IsPositive() {
		problems = append(problems, "special needs weight must be positive")
	}
	for name, rate := range map[string]decimal.Decimal{
		"default":      c.DefaultRate,
		"aggressive":   c.AggressiveRate,
		"conservative": c.ConservativeRate,
	} {
		if !rate.IsPositive() || rate.GreaterThan(one) {
			problems = append(problems, fmt.Sprintf("%s savings rate must be in (0, 1], got %s", name, rate))
		}
	}
	if c.MinMonthsForPrediction < 2 {
		problems = append(problems, "minimum months for prediction must be at least 2")
	}
	if c.MonthsAhead < 1 {
		problems = append(problems, "months ahead must be at least 1")
	}
	if c.ShortTermMonths > c.LongTermMonths {
		problems = append(problems, "short-term threshold must not exceed long-term threshold")
	}
	if c.UnusualThreshold <= 0 {
		problems = append(problems, "unusual transaction threshold must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid planner config:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// bucketIndex maps lower-cased category names to their bucket.
func (c Config) bucketIndex() map[string]Bucket {
	idx := make(map[string]Bucket, len(c.NeedsCategories)+len(c.WantsCategories)+len(c.SavingsCategories))
	for _, name := range c.NeedsCategories {
		idx[strings.ToLower(name)] = Needs
	}
	for _, name := range c.WantsCategories {
		idx[strings.ToLower(name)] = Wants
	}
	for _, name := range c.SavingsCategories {
		idx[strings.ToLower(name)] = Savings
	}
	return idx
}
