package planner

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestConfigValidateCollectsProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rule.Needs = d("0.6")
	cfg.MinMonthsForPrediction = 1
	cfg.SpecialNeedsWeight = decimal.Zero

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"sum to 1", "at least 2", "special needs"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestAnalyzeAllocations(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("needs over target", func(t *testing.T) {
		got, err := AnalyzeAllocations(cfg, d("1000"), map[string]decimal.Decimal{
			"Housing":   d("400"),
			"Groceries": d("200"),
			"Savings":   d("200"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Deviations) != 1 {
			t.Fatalf("expected one deviation, got %+v", got.Deviations)
		}
		dev := got.Deviations[0]
		if dev.Bucket != Needs {
			t.Errorf("bucket = %s, want needs", dev.Bucket)
		}
		if !strings.Contains(dev.Message, "60.0%") || !strings.Contains(dev.Message, "50%") {
			t.Errorf("message %q should cite 60.0%% and 50%%", dev.Message)
		}
		if !dev.Delta.Equal(d("10")) {
			t.Errorf("delta = %s, want 10", dev.Delta)
		}
		if !got.Current[Needs].Equal(d("0.6")) {
			t.Errorf("needs fraction = %s, want 0.6", got.Current[Needs])
		}
		if !got.Recommended[Wants].Equal(d("300")) {
			t.Errorf("recommended wants = %s, want 300", got.Recommended[Wants])
		}
	})

	t.Run("low savings flagged", func(t *testing.T) {
		got, err := AnalyzeAllocations(cfg, d("1000"), map[string]decimal.Decimal{
			"Housing": d("300"),
			"Savings": d("50"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Deviations) != 1 || got.Deviations[0].Bucket != Savings {
			t.Fatalf("expected savings deviation, got %+v", got.Deviations)
		}
		if !got.Deviations[0].Delta.Equal(d("-15")) {
			t.Errorf("delta = %s, want -15", got.Deviations[0].Delta)
		}
	})

	t.Run("category match ignores case and tracks unknowns", func(t *testing.T) {
		got, err := AnalyzeAllocations(cfg, d("1000"), map[string]decimal.Decimal{
			"housing": d("100"),
			"Gifts":   d("20"),
			"savings": d("300"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Current[Needs].Equal(d("0.1")) {
			t.Errorf("needs fraction = %s, want 0.1", got.Current[Needs])
		}
		if !reflect.DeepEqual(got.Unclassified, []string{"Gifts"}) {
			t.Errorf("unclassified = %v", got.Unclassified)
		}
		if len(got.Deviations) != 0 {
			t.Errorf("expected no deviations, got %+v", got.Deviations)
		}
	})

	t.Run("non-positive income", func(t *testing.T) {
		for _, income := range []string{"0", "-5"} {
			if _, err := AnalyzeAllocations(cfg, d(income), nil); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("income %s: err = %v, want ErrInvalidInput", income, err)
			}
		}
	})
}

func TestProjectSavings(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		req          SavingsRequest
		wantRequired string
		wantMonths   int
		wantFeasible bool
		wantRate     string
		wantRecs     int
	}{
		{
			name:         "open-ended goal",
			req:          SavingsRequest{GoalAmount: d("1000"), CurrentSavings: d("0"), MonthlyAvailable: d("100")},
			wantRequired: "20",
			wantMonths:   50,
			wantFeasible: true,
			wantRate:     "0.2",
		},
		{
			name: "one year out, not enough surplus",
			req: SavingsRequest{
				GoalAmount: d("1200"), CurrentSavings: d("0"), MonthlyAvailable: d("50"),
				TargetDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
			},
			wantRequired: "100",
			wantMonths:   12,
			wantFeasible: false,
			wantRate:     "0.2",
			wantRecs:     3,
		},
		{
			name: "short timeline uses aggressive rate",
			req: SavingsRequest{
				GoalAmount: d("600"), CurrentSavings: d("0"), MonthlyAvailable: d("500"),
				TargetDate: time.Date(2024, time.September, 20, 0, 0, 0, 0, time.UTC),
			},
			wantRequired: "100",
			wantMonths:   6,
			wantFeasible: true,
			wantRate:     "0.4",
		},
		{
			name: "long timeline uses conservative rate",
			req: SavingsRequest{
				GoalAmount: d("4800"), CurrentSavings: d("0"), MonthlyAvailable: d("500"),
				TargetDate: time.Date(2028, time.March, 15, 0, 0, 0, 0, time.UTC),
			},
			wantRequired: "100",
			wantMonths:   48,
			wantFeasible: true,
			wantRate:     "0.1",
		},
		{
			name: "past target date counts as one month",
			req: SavingsRequest{
				GoalAmount: d("300"), CurrentSavings: d("100"), MonthlyAvailable: d("500"),
				TargetDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			},
			wantRequired: "200",
			wantMonths:   1,
			wantFeasible: true,
			wantRate:     "0.4",
		},
		{
			name:         "no surplus is unreachable",
			req:          SavingsRequest{GoalAmount: d("1000"), CurrentSavings: d("0"), MonthlyAvailable: d("0")},
			wantRequired: "0",
			wantMonths:   0,
			wantFeasible: false,
			wantRate:     "0.2",
			wantRecs:     3,
		},
		{
			name:         "goal already reached",
			req:          SavingsRequest{GoalAmount: d("500"), CurrentSavings: d("800"), MonthlyAvailable: d("100")},
			wantRequired: "20",
			wantMonths:   0,
			wantFeasible: true,
			wantRate:     "0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProjectSavings(cfg, now, tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.RequiredMonthly.Equal(d(tt.wantRequired)) {
				t.Errorf("required = %s, want %s", got.RequiredMonthly, tt.wantRequired)
			}
			if got.MonthsToGoal != tt.wantMonths {
				t.Errorf("months = %d, want %d", got.MonthsToGoal, tt.wantMonths)
			}
			if got.Feasible != tt.wantFeasible {
				t.Errorf("feasible = %v, want %v", got.Feasible, tt.wantFeasible)
			}
			if !got.SuggestedRate.Equal(d(tt.wantRate)) {
				t.Errorf("rate = %s, want %s", got.SuggestedRate, tt.wantRate)
			}
			if len(got.Recommendations) != tt.wantRecs {
				t.Errorf("recommendations = %d, want %d", len(got.Recommendations), tt.wantRecs)
			}
		})
	}
}

func TestProjectSavingsRecommendationsScaleWithSurplus(t *testing.T) {
	plan, err := ProjectSavings(DefaultConfig(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), SavingsRequest{
		GoalAmount: d("1200"), MonthlyAvailable: d("50"),
		TargetDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"Subscriptions": "2.5", "Dining Out": "5", "Utilities": "1.5"}
	for _, rec := range plan.Recommendations {
		if !rec.PotentialSavings.Equal(d(want[rec.Category])) {
			t.Errorf("%s potential = %s, want %s", rec.Category, rec.PotentialSavings, want[rec.Category])
		}
		if rec.Advice == "" {
			t.Errorf("%s has no advice", rec.Category)
		}
	}
}

func TestProjectSavingsRejectsNegativeInput(t *testing.T) {
	_, err := ProjectSavings(DefaultConfig(), time.Now(), SavingsRequest{GoalAmount: d("-1")})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestMonthsBetween(t *testing.T) {
	base := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		target time.Time
		want   int
	}{
		{time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, time.March, 30, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), 2},
		{time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), 12},
		{time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		if got := monthsBetween(base, tt.target); got != tt.want {
			t.Errorf("monthsBetween(%s) = %d, want %d", tt.target.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestOptimizeFamilyAllocation(t *testing.T) {
	cfg := DefaultConfig()
	members := []Member{
		{ID: "1", Name: "Ana", Role: "primary_earner"},
		{ID: "2", Name: "Ben", Role: "partner"},
		{ID: "3", Name: "Cy", Role: "dependent", SpecialNeeds: true},
	}

	got, err := OptimizeFamilyAllocation(cfg, members, d("3000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantWeights := []string{"1.2", "1", "1.04"}
	for i, a := range got.Allocations {
		if !a.Weight.Equal(d(wantWeights[i])) {
			t.Errorf("member %s weight = %s, want %s", a.Member.ID, a.Weight, wantWeights[i])
		}
	}
	if !got.TotalWeight.Equal(d("3.24")) {
		t.Errorf("total weight = %s, want 3.24", got.TotalWeight)
	}
	// 3000 * 1.2 / 3.24 = 1111.111...; the leftover cent goes to the partner.
	if !got.Allocations[0].Amount.Equal(d("1111.11")) {
		t.Errorf("primary earner amount = %s", got.Allocations[0].Amount)
	}
	assertSum(t, got, d("3000"))
}

func TestOptimizeFamilyAllocationSumsToBudget(t *testing.T) {
	cfg := DefaultConfig()
	budgets := []string{"0", "0.01", "0.05", "100", "999.99", "1234.567", "7"}
	families := [][]Member{
		{{ID: "a"}},
		{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		{{ID: "a", Role: "primary_earner"}, {ID: "b", Role: "dependent", SpecialNeeds: true}, {ID: "c", Role: "dependent"}, {ID: "d"}, {ID: "e", SpecialNeeds: true}, {ID: "f"}, {ID: "g"}},
	}
	for _, b := range budgets {
		for _, fam := range families {
			got, err := OptimizeFamilyAllocation(cfg, fam, d(b))
			if err != nil {
				t.Fatalf("budget %s: %v", b, err)
			}
			assertSum(t, got, d(b).Round(2))
		}
	}
}

func TestOptimizeFamilyAllocationEdges(t *testing.T) {
	cfg := DefaultConfig()

	got, err := OptimizeFamilyAllocation(cfg, nil, d("500"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Allocations) != 0 {
		t.Errorf("expected no allocations, got %d", len(got.Allocations))
	}

	if _, err := OptimizeFamilyAllocation(cfg, []Member{{ID: "a"}}, d("-1")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative budget: err = %v, want ErrInvalidInput", err)
	}
}

func assertSum(t *testing.T, got FamilyAllocation, want decimal.Decimal) {
	t.Helper()
	sum := decimal.Zero
	for _, a := range got.Allocations {
		if a.Amount.IsNegative() {
			t.Errorf("negative allocation %s for %s", a.Amount, a.Member.ID)
		}
		if !a.Amount.Equal(a.Amount.Round(2)) {
			t.Errorf("allocation %s is not whole cents", a.Amount)
		}
		sum = sum.Add(a.Amount)
	}
	if !sum.Equal(want) {
		t.Errorf("allocations sum to %s, want %s", sum, want)
	}
}

func TestPredictTrend(t *testing.T) {
	cfg := DefaultConfig().WithHorizon(3, 2)

	got := PredictTrend(cfg, map[string][]decimal.Decimal{
		"Groceries": {d("100"), d("110"), d("120")},
		"Travel":    {d("500"), d("200")},
		"Dining":    {d("90"), d("50"), d("10")},
		"Rent":      {d("800"), d("800"), d("800")},
	})

	if _, ok := got["Travel"]; ok {
		t.Error("Travel has too few points and should be skipped")
	}

	g := got["Groceries"]
	if !g.Slope.Equal(d("10")) {
		t.Errorf("groceries slope = %s, want 10", g.Slope)
	}
	assertDecimals(t, "groceries", g.Projected, "130", "140")
	if !g.CurrentMonthly.Equal(d("120")) {
		t.Errorf("groceries current = %s, want 120", g.CurrentMonthly)
	}

	assertDecimals(t, "dining", got["Dining"].Projected, "0", "0")
	assertDecimals(t, "rent", got["Rent"].Projected, "800", "800")
	if !got["Rent"].Slope.IsZero() {
		t.Errorf("rent slope = %s, want 0", got["Rent"].Slope)
	}
}

func TestPredictTrendIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	series := map[string][]decimal.Decimal{"Utilities": {d("40.10"), d("38.75"), d("52.30"), d("47.05")}}
	first := PredictTrend(cfg, series)
	for i := 0; i < 5; i++ {
		again := PredictTrend(cfg, series)
		if !again["Utilities"].Slope.Equal(first["Utilities"].Slope) {
			t.Fatalf("run %d: slope changed from %s to %s", i, first["Utilities"].Slope, again["Utilities"].Slope)
		}
		for j := range first["Utilities"].Projected {
			if !again["Utilities"].Projected[j].Equal(first["Utilities"].Projected[j]) {
				t.Fatalf("run %d: projection %d changed", i, j)
			}
		}
	}
}

func TestDeviationMessages(t *testing.T) {
	got, err := AnalyzeAllocations(DefaultConfig(), d("1000"), map[string]decimal.Decimal{
		"Housing": d("300"),
		"Dining":  d("450"),
		"Savings": d("50"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[Bucket]string{
		Wants:   "Your discretionary spending is 45.0% of income. Consider reducing it to 30% to increase savings.",
		Savings: "Your savings rate is 5.0%. Try to increase it to 20% by reducing discretionary spending.",
	}
	if len(got.Deviations) != len(want) {
		t.Fatalf("deviations = %+v", got.Deviations)
	}
	for _, dev := range got.Deviations {
		if dev.Message != want[dev.Bucket] {
			t.Errorf("%s message = %q, want %q", dev.Bucket, dev.Message, want[dev.Bucket])
		}
	}
}

func TestPlannerIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	totals := map[string]decimal.Decimal{
		"Housing": d("700"), "Groceries": d("180.55"), "Dining": d("95.10"),
		"Savings": d("60"), "Pets": d("12"),
	}
	savings := SavingsRequest{
		GoalAmount: d("5000"), CurrentSavings: d("350"), MonthlyAvailable: d("120"),
		TargetDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	members := []Member{
		{ID: "1", Name: "Anna", Role: "primary_earner"},
		{ID: "2", Name: "Luca", Role: "dependent", SpecialNeeds: true},
		{ID: "3", Name: "Sara", Role: "adult"},
	}

	firstAlloc, err := AnalyzeAllocations(cfg, d("1500"), totals)
	if err != nil {
		t.Fatalf("AnalyzeAllocations: %v", err)
	}
	firstPlan, err := ProjectSavings(cfg, now, savings)
	if err != nil {
		t.Fatalf("ProjectSavings: %v", err)
	}
	firstSplit, err := OptimizeFamilyAllocation(cfg, members, d("1000"))
	if err != nil {
		t.Fatalf("OptimizeFamilyAllocation: %v", err)
	}

	for i := 0; i < 5; i++ {
		alloc, _ := AnalyzeAllocations(cfg, d("1500"), totals)
		if !reflect.DeepEqual(alloc, firstAlloc) {
			t.Fatalf("run %d: allocation changed:\n%+v\n%+v", i, firstAlloc, alloc)
		}
		plan, _ := ProjectSavings(cfg, now, savings)
		if !reflect.DeepEqual(plan, firstPlan) {
			t.Fatalf("run %d: savings plan changed:\n%+v\n%+v", i, firstPlan, plan)
		}
		split, _ := OptimizeFamilyAllocation(cfg, members, d("1000"))
		if !reflect.DeepEqual(split, firstSplit) {
			t.Fatalf("run %d: family split changed:\n%+v\n%+v", i, firstSplit, split)
		}
	}
	for _, b := range []Bucket{Needs, Wants, Savings} {
		if _, ok := firstAlloc.Current[b]; !ok {
			t.Errorf("current fractions missing bucket %s", b)
		}
	}
}

func assertDecimals(t *testing.T, label string, got []decimal.Decimal, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d values, want %d", label, len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(d(want[i])) {
			t.Errorf("%s[%d] = %s, want %s", label, i, got[i], want[i])
		}
	}
}

func TestAnalyzeSpendingPatterns(t *testing.T) {
	cfg := DefaultConfig()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var entries []Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, Entry{ID: int64(i + 1), Category: "Groceries", Amount: d("50"), Date: day})
	}
	entries = append(entries, Entry{ID: 99, Category: "Travel", Amount: d("1000"), Date: day})

	got := AnalyzeSpendingPatterns(cfg, entries)
	if !got.TotalSpent.Equal(d("1500")) {
		t.Errorf("total = %s, want 1500", got.TotalSpent)
	}
	if !got.AveragePerTransaction.Equal(d("136.36")) {
		t.Errorf("average = %s, want 136.36", got.AveragePerTransaction)
	}
	if !got.CategoryBreakdown["Groceries"].Equal(d("500")) {
		t.Errorf("groceries = %s, want 500", got.CategoryBreakdown["Groceries"])
	}
	if len(got.Unusual) != 1 || got.Unusual[0].ID != 99 {
		t.Fatalf("unusual = %+v, want only entry 99", got.Unusual)
	}
	if got.Unusual[0].ZScore <= cfg.UnusualThreshold {
		t.Errorf("z-score %f should exceed threshold", got.Unusual[0].ZScore)
	}
}

func TestAnalyzeSpendingPatternsDegenerate(t *testing.T) {
	cfg := DefaultConfig()

	empty := AnalyzeSpendingPatterns(cfg, nil)
	if !empty.TotalSpent.IsZero() || len(empty.Unusual) != 0 {
		t.Errorf("empty input should give zero summary, got %+v", empty)
	}

	same := AnalyzeSpendingPatterns(cfg, []Entry{
		{Category: "Rent", Amount: d("800")},
		{Category: "Rent", Amount: d("800")},
	})
	if len(same.Unusual) != 0 {
		t.Errorf("identical amounts should not be unusual, got %+v", same.Unusual)
	}
}

func TestMonthlySeries(t *testing.T) {
	entries := []Entry{
		{Category: "Groceries", Amount: d("30"), Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Category: "Groceries", Amount: d("20"), Date: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)},
		{Category: "Groceries", Amount: d("5"), Date: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		{Category: "Rent", Amount: d("800"), Date: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := MonthlySeries(entries)
	assertDecimals(t, "groceries", got["Groceries"], "25", "30")
	assertDecimals(t, "rent", got["Rent"], "800")

	totals := CategoryTotals(entries)
	if !totals["Groceries"].Equal(d("55")) {
		t.Errorf("groceries total = %s, want 55", totals["Groceries"])
	}
}
