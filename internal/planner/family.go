package planner

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Member is the part of a family member the optimiser looks at.
type Member struct {
	ID           string
	Name         string
	Role         string
	SpecialNeeds bool
}

type MemberAllocation struct {
	Member Member
	Weight decimal.Decimal
	Amount decimal.Decimal
}

type FamilyAllocation struct {
	TotalBudget decimal.Decimal
	TotalWeight decimal.Decimal
	Allocations []MemberAllocation
}

// Weight returns the member's share weight: 1.0 scaled by the role multiplier
// and, for special needs, the special-needs multiplier.
func (c Config) Weight(m Member) decimal.Decimal {
	w := decimal.NewFromInt(1)
	if rw, ok := c.RoleWeights[m.Role]; ok {
		w = w.Mul(rw)
	}
	if m.SpecialNeeds {
		w = w.Mul(c.SpecialNeedsWeight)
	}
	return w
}

// OptimizeFamilyAllocation splits totalBudget across members in proportion to
// their weights. Shares are rounded to cents and the leftover cents go to the
// members with the largest rounding remainders, so the shares always add up to
// the budget.
func OptimizeFamilyAllocation(cfg Config, members []Member, totalBudget decimal.Decimal) (FamilyAllocation, error) {
	if totalBudget.IsNegative() {
		return FamilyAllocation{}, fmt.Errorf("%w: budget must not be negative, got %s", ErrInvalidInput, totalBudget)
	}
	budget := totalBudget.Round(2)
	out := FamilyAllocation{TotalBudget: budget, TotalWeight: decimal.Zero}
	if len(members) == 0 {
		return out, nil
	}

	weights := make([]decimal.Decimal, len(members))
	for i, m := range members {
		weights[i] = cfg.Weight(m)
		out.TotalWeight = out.TotalWeight.Add(weights[i])
	}

	budgetCents := budget.Shift(2).IntPart()
	type share struct {
		cents     int64
		remainder decimal.Decimal
	}
	shares := make([]share, len(members))
	var assigned int64
	for i, w := range weights {
		exact := decimal.NewFromInt(budgetCents).Mul(w).Div(out.TotalWeight)
		floor := exact.Floor()
		shares[i] = share{cents: floor.IntPart(), remainder: exact.Sub(floor)}
		assigned += shares[i].cents
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares[order[a]].remainder.GreaterThan(shares[order[b]].remainder)
	})
	for i := int64(0); i < budgetCents-assigned; i++ {
		shares[order[int(i)%len(order)]].cents++
	}

	out.Allocations = make([]MemberAllocation, len(members))
	for i, m := range members {
		out.Allocations[i] = MemberAllocation{
			Member: m,
			Weight: weights[i],
			Amount: decimal.New(shares[i].cents, -2),
		}
	}
	return out, nil
}
