package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Totals is the all-time income/expense summary shown on dashboards.
type Totals struct {
	Income   Money
	Expenses Money
}

// Balance is income minus expenses; it may be negative.
func (t Totals) Balance() Money {
	return Money{Cents: t.Income.Cents - t.Expenses.Cents}
}
