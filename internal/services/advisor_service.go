package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"famfin/internal/core"
	"famfin/internal/narrative"
	"famfin/internal/planner"
	"famfin/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrNoPlan is returned when an operation needs the current month's plan and
// none exists.
var ErrNoPlan = errors.New("monthly plan not found")

// Income categories whose planned amounts count as money already saved.
var savingsIncomeCategories = []string{"Savings", "Investments", "Emergency Fund"}

// predictionWindow is how far back Predict looks for monthly history.
const predictionWindow = 12

// AdvisorStore is the read-side persistence the advisor needs.
type AdvisorStore interface {
	Totals(ctx context.Context, userID int64, familyID *int64, month string) (core.Totals, error)
	CategoryTotals(ctx context.Context, userID int64, familyID *int64, month string) ([]core.CategoryAmount, error)
	GetMonthlyPlan(ctx context.Context, userID int64, familyID *int64, month string) (core.MonthlyPlan, error)
	ListMembers(ctx context.Context, familyID int64) ([]core.FamilyMember, error)
	ListTransactionsBetween(ctx context.Context, userID int64, typ core.TransactionType, from, to core.Date) ([]core.Transaction, error)
	ListFamilyTransactionsBetween(ctx context.Context, familyID int64, typ core.TransactionType, from, to core.Date) ([]core.Transaction, error)
}

// AdvisorService feeds stored data into the planner and narrative packages.
type AdvisorService struct {
	store     AdvisorStore
	cfg       planner.Config
	generator narrative.Generator
	now       func() time.Time
}

func NewAdvisorService(store AdvisorStore, cfg planner.Config, generator narrative.Generator) *AdvisorService {
	return &AdvisorService{store: store, cfg: cfg, generator: generator, now: time.Now}
}

// SavingsResult is a savings plan together with the figures it was built from.
type SavingsResult struct {
	Plan            planner.SavingsPlan
	GoalAmount      decimal.Decimal
	CurrentSavings  decimal.Decimal
	MonthlyIncome   decimal.Decimal
	MonthlyExpenses decimal.Decimal
}

// Report summarises spending over a period.
type Report struct {
	From        core.Date
	To          core.Date
	Patterns    planner.SpendingPatterns
	Predictions map[string]planner.Trend
}

// Analyze runs pattern analysis over caller-supplied transactions.
func (s *AdvisorService) Analyze(txs []core.Transaction) planner.SpendingPatterns {
	return planner.AnalyzeSpendingPatterns(s.cfg, toEntries(txs))
}

// BudgetRecommendations compares the user's and family's all-time expenses by
// category against the allocation rule for the given monthly income.
func (s *AdvisorService) BudgetRecommendations(ctx context.Context, user core.User, income decimal.Decimal) (planner.Allocation, error) {
	if !income.IsPositive() {
		return planner.Allocation{}, fmt.Errorf("%w: monthly income must be positive", ErrValidation)
	}
	totals, err := s.categoryTotals(ctx, user, "")
	if err != nil {
		return planner.Allocation{}, err
	}
	return planner.AnalyzeAllocations(s.cfg, income, totals)
}

// SavingsPlan projects a savings goal from the current month's plan and spending.
func (s *AdvisorService) SavingsPlan(ctx context.Context, user core.User, goal decimal.Decimal, target time.Time) (SavingsResult, error) {
	if !goal.IsPositive() {
		return SavingsResult{}, fmt.Errorf("%w: goal amount must be greater than 0", ErrValidation)
	}
	now := s.now()
	month := now.Format("2006-01")

	plan, err := s.store.GetMonthlyPlan(ctx, user.ID, user.FamilyID, month)
	if errors.Is(err, storage.ErrNotFound) {
		return SavingsResult{}, fmt.Errorf("%w for %s", ErrNoPlan, month)
	}
	if err != nil {
		return SavingsResult{}, err
	}
	totals, err := s.store.Totals(ctx, user.ID, user.FamilyID, month)
	if err != nil {
		return SavingsResult{}, err
	}

	res := SavingsResult{
		GoalAmount:      goal,
		CurrentSavings:  plan.SavingsIncome(savingsIncomeCategories).Decimal(),
		MonthlyIncome:   plan.TotalIncome().Decimal(),
		MonthlyExpenses: totals.Expenses.Decimal(),
	}
	res.Plan, err = planner.ProjectSavings(s.cfg, now, planner.SavingsRequest{
		GoalAmount:       goal,
		CurrentSavings:   res.CurrentSavings,
		MonthlyAvailable: res.MonthlyIncome.Sub(res.MonthlyExpenses),
		TargetDate:       target,
	})
	if err != nil {
		return SavingsResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return res, nil
}

// OptimizeFamily splits budget across members. When members is empty the
// user's stored family members are used.
func (s *AdvisorService) OptimizeFamily(ctx context.Context, user core.User, members []planner.Member, budget decimal.Decimal) (planner.FamilyAllocation, error) {
	if budget.IsNegative() {
		return planner.FamilyAllocation{}, fmt.Errorf("%w: total budget must not be negative", ErrValidation)
	}
	if len(members) == 0 && user.FamilyID != nil {
		stored, err := s.store.ListMembers(ctx, *user.FamilyID)
		if err != nil {
			return planner.FamilyAllocation{}, err
		}
		for _, m := range stored {
			members = append(members, planner.Member{
				ID:           fmt.Sprint(m.ID),
				Name:         m.Name,
				Role:         m.Role,
				SpecialNeeds: m.SpecialNeeds,
			})
		}
	}
	return planner.OptimizeFamilyAllocation(s.cfg, members, budget)
}

// Report analyses the user's and family's expenses in [from, to]. Both sets
// are fetched concurrently.
func (s *AdvisorService) Report(ctx context.Context, user core.User, from, to core.Date) (Report, error) {
	if to.Before(from.Time) {
		return Report{}, fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	txs, err := s.expensesBetween(ctx, user, from, to)
	if err != nil {
		return Report{}, err
	}
	entries := toEntries(txs)
	return Report{
		From:        from,
		To:          to,
		Patterns:    planner.AnalyzeSpendingPatterns(s.cfg, entries),
		Predictions: planner.PredictTrend(s.cfg, planner.MonthlySeries(entries)),
	}, nil
}

// Predict fits trends over the last year of expenses and projects
// monthsAhead months; zero keeps the configured horizon.
func (s *AdvisorService) Predict(ctx context.Context, user core.User, monthsAhead int) (map[string]planner.Trend, error) {
	if monthsAhead < 0 {
		return nil, fmt.Errorf("%w: months ahead must not be negative", ErrValidation)
	}
	cfg := s.cfg
	if monthsAhead > 0 {
		cfg = cfg.WithHorizon(cfg.MinMonthsForPrediction, monthsAhead)
	}

	now := s.now()
	to := core.NewDate(now.Year(), int(now.Month()), now.Day())
	start := time.Date(now.Year(), now.Month()-(predictionWindow-1), 1, 0, 0, 0, 0, time.UTC)
	from := core.NewDate(start.Year(), int(start.Month()), 1)

	txs, err := s.expensesBetween(ctx, user, from, to)
	if err != nil {
		return nil, err
	}
	return planner.PredictTrend(cfg, planner.MonthlySeries(toEntries(txs))), nil
}

// Chat answers a free-text question with a summary of the current month.
func (s *AdvisorService) Chat(ctx context.Context, user core.User, question string) (string, error) {
	if s.generator == nil {
		return "", errors.New("no narrative generator configured")
	}
	month := s.now().Format("2006-01")

	in := narrative.Context{UserName: user.Name, Question: question, MonthlyIncome: decimal.Zero}
	// Without a plan the income stays zero.
	plan, err := s.store.GetMonthlyPlan(ctx, user.ID, user.FamilyID, month)
	switch {
	case err == nil:
		in.MonthlyIncome = plan.TotalIncome().Decimal()
	case !errors.Is(err, storage.ErrNotFound):
		return "", err
	}

	in.Spending, err = s.categoryTotals(ctx, user, month)
	if err != nil {
		return "", err
	}
	if in.MonthlyIncome.IsPositive() {
		alloc, err := planner.AnalyzeAllocations(s.cfg, in.MonthlyIncome, in.Spending)
		if err != nil {
			return "", err
		}
		for _, d := range alloc.Deviations {
			in.Recommendations = append(in.Recommendations, d.Message)
		}
	}
	return s.generator.Generate(ctx, in)
}

func (s *AdvisorService) categoryTotals(ctx context.Context, user core.User, month string) (map[string]decimal.Decimal, error) {
	rows, err := s.store.CategoryTotals(ctx, user.ID, user.FamilyID, month)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.Name] = out[r.Name].Add(r.Amount.Decimal())
	}
	return out, nil
}

func (s *AdvisorService) expensesBetween(ctx context.Context, user core.User, from, to core.Date) ([]core.Transaction, error) {
	var own, family []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		own, err = s.store.ListTransactionsBetween(gctx, user.ID, core.Expense, from, to)
		return err
	})
	if user.FamilyID != nil {
		g.Go(func() error {
			var err error
			family, err = s.store.ListFamilyTransactionsBetween(gctx, *user.FamilyID, core.Expense, from, to)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return mergeByID(own, family), nil
}

// mergeByID unions transaction sets, dropping duplicates, ordered by date then id.
func mergeByID(sets ...[]core.Transaction) []core.Transaction {
	seen := make(map[int64]struct{})
	var out []core.Transaction
	for _, set := range sets {
		for _, t := range set {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func toEntries(txs []core.Transaction) []planner.Entry {
	out := make([]planner.Entry, 0, len(txs))
	for _, t := range txs {
		out = append(out, planner.Entry{
			ID:          t.ID,
			Category:    t.Category,
			Amount:      t.Amount.Decimal(),
			Date:        t.Date.Time,
			Description: t.Description,
		})
	}
	return out
}
