package planner

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Deviation flags a bucket that is off its target fraction.
type Deviation struct {
	Bucket Bucket
	// Current and Target are percentages of income.
	Current decimal.Decimal
	Target  decimal.Decimal
	// Delta is Current minus Target in percentage points.
	Delta   decimal.Decimal
	Message string
}

// Allocation compares actual spending per bucket against the allocation rule.
type Allocation struct {
	Income decimal.Decimal
	// Current holds the actual fraction of income per bucket.
	Current map[Bucket]decimal.Decimal
	// Recommended holds the target amount per bucket.
	Recommended map[Bucket]decimal.Decimal
	Deviations  []Deviation
	// Unclassified lists categories that fall in no bucket, sorted.
	Unclassified []string
}

// AnalyzeAllocations classifies category totals into needs, wants and savings
// and reports buckets that miss their target. Needs and wants are flagged when
// above target, savings when below.
func AnalyzeAllocations(cfg Config, income decimal.Decimal, totals map[string]decimal.Decimal) (Allocation, error) {
	if !income.IsPositive() {
		return Allocation{}, fmt.Errorf("%w: income must be positive, got %s", ErrInvalidInput, income)
	}

	idx := cfg.bucketIndex()
	spent := map[Bucket]decimal.Decimal{Needs: decimal.Zero, Wants: decimal.Zero, Savings: decimal.Zero}
	var unclassified []string
	for _, name := range sortedKeys(totals) {
		b, ok := idx[strings.ToLower(name)]
		if !ok {
			unclassified = append(unclassified, name)
			continue
		}
		spent[b] = spent[b].Add(totals[name])
	}

	out := Allocation{
		Income:       income,
		Current:      make(map[Bucket]decimal.Decimal, len(Buckets)),
		Recommended:  make(map[Bucket]decimal.Decimal, len(Buckets)),
		Unclassified: unclassified,
	}
	for _, b := range Buckets {
		frac := spent[b].Div(income)
		target := cfg.Rule.Target(b)
		out.Current[b] = frac
		out.Recommended[b] = income.Mul(target).Round(2)

		over := frac.GreaterThan(target)
		if b == Savings {
			over = frac.LessThan(target)
		}
		if !over {
			continue
		}
		cur := frac.Mul(hundred)
		tgt := target.Mul(hundred)
		out.Deviations = append(out.Deviations, Deviation{
			Bucket:  b,
			Current: cur.Round(1),
			Target:  tgt,
			Delta:   cur.Sub(tgt).Round(1),
			Message: deviationMessage(b, cur, tgt),
		})
	}
	return out, nil
}

func deviationMessage(b Bucket, current, target decimal.Decimal) string {
	cur := current.StringFixed(1) + "%"
	tgt := target.String() + "%"
	switch b {
	case Needs:
		return fmt.Sprintf("Your essential expenses are %s of income. Try to reduce them to %s by finding cheaper alternatives.", cur, tgt)
	case Wants:
		return fmt.Sprintf("Your discretionary spending is %s of income. Consider reducing it to %s to increase savings.", cur, tgt)
	default:
		return fmt.Sprintf("Your savings rate is %s. Try to increase it to %s by reducing discretionary spending.", cur, tgt)
	}
}
