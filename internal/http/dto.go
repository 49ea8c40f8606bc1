package http

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"famfin/internal/core"
	"famfin/internal/planner"
	"famfin/internal/services"

	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02 15:04:05"

// num renders a decimal amount as a JSON number with two decimals.
func num(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ratio renders a fraction with four decimals.
func ratio(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// Transactions

type transactionJSON struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	FamilyID     *int64     `json:"familyId,omitempty"`
	Type         string     `json:"type"`
	Amount       core.Money `json:"amount"`
	Category     string     `json:"category"`
	Description  string     `json:"description"`
	Date         string     `json:"date"`
	FamilyMember string     `json:"familyMember,omitempty"`
	IsRecurring  bool       `json:"isRecurring"`
	CreatedAt    string     `json:"createdAt,omitempty"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:           t.ID,
		UserID:       t.UserID,
		FamilyID:     t.FamilyID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		Category:     t.Category,
		Description:  t.Description,
		Date:         t.Date.String(),
		FamilyMember: t.FamilyMember,
		IsRecurring:  t.IsRecurring,
		CreatedAt:    timestamp(t.CreatedAt),
	}
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

// transactionRequest carries create and partial-update fields; nil fields are
// left untouched.
type transactionRequest struct {
	Type         *string     `json:"type"`
	Amount       *core.Money `json:"amount"`
	Category     *string     `json:"category"`
	Description  *string     `json:"description"`
	Date         *string     `json:"date"`
	FamilyMember *string     `json:"familyMember"`
	IsRecurring  *bool       `json:"isRecurring"`
}

func (req transactionRequest) apply(t *core.Transaction) error {
	if req.Type != nil {
		t.Type = core.TransactionType(strings.ToLower(strings.TrimSpace(*req.Type)))
	}
	if req.Amount != nil {
		t.Amount = *req.Amount
	}
	if req.Category != nil {
		t.Category = sanitizeInput(*req.Category)
	}
	if req.Description != nil {
		t.Description = sanitizeInput(*req.Description)
	}
	if req.Date != nil {
		d, err := dateParam(*req.Date, "date")
		if err != nil {
			return err
		}
		t.Date = d
	}
	if req.FamilyMember != nil {
		t.FamilyMember = sanitizeInput(*req.FamilyMember)
	}
	if req.IsRecurring != nil {
		t.IsRecurring = *req.IsRecurring
	}
	return nil
}

type dashboardJSON struct {
	Month    string     `json:"month,omitempty"`
	Income   core.Money `json:"income"`
	Expenses core.Money `json:"expenses"`
	Balance  core.Money `json:"balance"`
}

type familyDashboardJSON struct {
	Month          string     `json:"month,omitempty"`
	FamilyID       *int64     `json:"familyId,omitempty"`
	FamilyIncome   core.Money `json:"familyIncome"`
	FamilyExpenses core.Money `json:"familyExpenses"`
	FamilyBalance  core.Money `json:"familyBalance"`
}

// Categories

type categoryJSON struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	Icon           string      `json:"icon,omitempty"`
	Color          string      `json:"color,omitempty"`
	Description    string      `json:"description,omitempty"`
	SuggestedLimit *core.Money `json:"suggestedLimit,omitempty"`
	Shared         bool        `json:"shared"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{
		ID:             c.ID,
		Name:           c.Name,
		Type:           string(c.Type),
		Icon:           c.Icon,
		Color:          c.Color,
		Description:    c.Description,
		SuggestedLimit: c.SuggestedLimit,
		Shared:         c.FamilyID != nil,
	}
}

type categoryRequest struct {
	Name           *string     `json:"name"`
	Type           *string     `json:"type"`
	Icon           *string     `json:"icon"`
	Color          *string     `json:"color"`
	Description    *string     `json:"description"`
	SuggestedLimit *core.Money `json:"suggestedLimit"`
	Shared         *bool       `json:"shared"`
}

func (req categoryRequest) apply(c *core.Category, user core.User) {
	if req.Name != nil {
		c.Name = sanitizeInput(*req.Name)
	}
	if req.Type != nil {
		c.Type = core.TransactionType(strings.ToLower(strings.TrimSpace(*req.Type)))
	}
	if req.Icon != nil {
		c.Icon = sanitizeInput(*req.Icon)
	}
	if req.Color != nil {
		c.Color = sanitizeInput(*req.Color)
	}
	if req.Description != nil {
		c.Description = sanitizeInput(*req.Description)
	}
	if req.SuggestedLimit != nil {
		limit := *req.SuggestedLimit
		c.SuggestedLimit = &limit
	}
	if req.Shared != nil {
		c.FamilyID = nil
		if *req.Shared {
			c.FamilyID = user.FamilyID
		}
	}
}

// Monthly plans

type planJSON struct {
	Month            string           `json:"month"`
	ExpectedIncome   []core.PlanEntry `json:"expectedIncome"`
	ExpectedExpenses []core.PlanEntry `json:"expectedExpenses"`
	Notes            string           `json:"notes"`
	Shared           bool             `json:"shared"`
}

func toPlanJSON(p core.MonthlyPlan) planJSON {
	out := planJSON{
		Month:            p.Month,
		ExpectedIncome:   p.ExpectedIncome,
		ExpectedExpenses: p.ExpectedExpenses,
		Notes:            p.Notes,
		Shared:           p.FamilyID != nil,
	}
	if out.ExpectedIncome == nil {
		out.ExpectedIncome = []core.PlanEntry{}
	}
	if out.ExpectedExpenses == nil {
		out.ExpectedExpenses = []core.PlanEntry{}
	}
	return out
}

type planRequest struct {
	ExpectedIncome   *[]core.PlanEntry `json:"expectedIncome"`
	ExpectedExpenses *[]core.PlanEntry `json:"expectedExpenses"`
	Notes            *string           `json:"notes"`
	Shared           *bool             `json:"shared"`
}

func (req planRequest) apply(p *core.MonthlyPlan, user core.User) {
	if req.ExpectedIncome != nil {
		p.ExpectedIncome = cleanEntries(*req.ExpectedIncome)
	}
	if req.ExpectedExpenses != nil {
		p.ExpectedExpenses = cleanEntries(*req.ExpectedExpenses)
	}
	if req.Notes != nil {
		p.Notes = sanitizeInput(*req.Notes)
	}
	if req.Shared != nil {
		p.FamilyID = nil
		if *req.Shared {
			p.FamilyID = user.FamilyID
		}
	}
}

func cleanEntries(in []core.PlanEntry) []core.PlanEntry {
	out := make([]core.PlanEntry, 0, len(in))
	for _, e := range in {
		e.Category = sanitizeInput(e.Category)
		out = append(out, e)
	}
	return out
}

// Families

type memberJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Icon         string `json:"icon,omitempty"`
	Color        string `json:"color,omitempty"`
	SpecialNeeds bool   `json:"specialNeeds"`
	UserID       *int64 `json:"userId,omitempty"`
}

func toMemberJSON(m core.FamilyMember) memberJSON {
	return memberJSON{
		ID:           m.ID,
		Name:         m.Name,
		Role:         m.Role,
		Icon:         m.Icon,
		Color:        m.Color,
		SpecialNeeds: m.SpecialNeeds,
		UserID:       m.UserID,
	}
}

type familyJSON struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	CreatedBy int64        `json:"createdBy"`
	CreatedAt string       `json:"createdAt,omitempty"`
	IsAdmin   bool         `json:"isAdmin"`
	Members   []memberJSON `json:"members"`
}

func toFamilyJSON(f core.Family, members []core.FamilyMember, admin bool) familyJSON {
	out := familyJSON{
		ID:        f.ID,
		Name:      f.Name,
		CreatedBy: f.CreatedBy,
		CreatedAt: timestamp(f.CreatedAt),
		IsAdmin:   admin,
		Members:   make([]memberJSON, 0, len(members)),
	}
	for _, m := range members {
		out.Members = append(out.Members, toMemberJSON(m))
	}
	return out
}

type familyRequest struct {
	Name string `json:"name"`
}

type memberRequest struct {
	Name         *string `json:"name"`
	Role         *string `json:"role"`
	Icon         *string `json:"icon"`
	Color        *string `json:"color"`
	SpecialNeeds *bool   `json:"specialNeeds"`
	UserID       *int64  `json:"userId"`
}

func (req memberRequest) apply(m *core.FamilyMember) {
	if req.Name != nil {
		m.Name = sanitizeInput(*req.Name)
	}
	if req.Role != nil {
		m.Role = strings.ToLower(sanitizeInput(*req.Role))
	}
	if req.Icon != nil {
		m.Icon = sanitizeInput(*req.Icon)
	}
	if req.Color != nil {
		m.Color = sanitizeInput(*req.Color)
	}
	if req.SpecialNeeds != nil {
		m.SpecialNeeds = *req.SpecialNeeds
	}
	if req.UserID != nil {
		m.UserID = req.UserID
	}
}

// Goals

type goalJSON struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	TargetAmount    core.Money `json:"targetAmount"`
	CurrentAmount   core.Money `json:"currentAmount"`
	TargetDate      string     `json:"targetDate,omitempty"`
	Status          string     `json:"status"`
	Recommendations []string   `json:"recommendations"`
	CreatedAt       string     `json:"createdAt,omitempty"`
}

func toGoalJSON(g core.SavingsGoal) goalJSON {
	out := goalJSON{
		ID:              g.ID,
		Name:            g.Name,
		TargetAmount:    g.TargetAmount,
		CurrentAmount:   g.CurrentAmount,
		TargetDate:      g.TargetDate.String(),
		Status:          string(g.Status),
		Recommendations: g.Recommendations,
		CreatedAt:       timestamp(g.CreatedAt),
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return out
}

type goalRequest struct {
	Name          *string     `json:"name"`
	TargetAmount  *core.Money `json:"targetAmount"`
	CurrentAmount *core.Money `json:"currentAmount"`
	TargetDate    *string     `json:"targetDate"`
	Status        *string     `json:"status"`
}

func (req goalRequest) apply(g *core.SavingsGoal) error {
	if req.Name != nil {
		g.Name = sanitizeInput(*req.Name)
	}
	if req.TargetAmount != nil {
		g.TargetAmount = *req.TargetAmount
	}
	if req.CurrentAmount != nil {
		g.CurrentAmount = *req.CurrentAmount
	}
	if req.TargetDate != nil {
		d, err := dateParam(*req.TargetDate, "targetDate")
		if err != nil {
			return err
		}
		g.TargetDate = d
	}
	if req.Status != nil {
		g.Status = core.GoalStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
	}
	return nil
}

// Notifications

type notificationJSON struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
	Read      bool   `json:"read"`
	Timestamp string `json:"timestamp"`
}

func toNotificationJSON(n core.Notification) notificationJSON {
	return notificationJSON{
		ID:        n.ID,
		Type:      string(n.Type),
		Message:   n.Message,
		Priority:  string(n.Priority),
		Read:      n.Read,
		Timestamp: timestamp(n.CreatedAt),
	}
}

// Advisor requests

type analyzeTransaction struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	Amount      core.Money `json:"amount"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
}

type analyzeRequest struct {
	Transactions *[]analyzeTransaction `json:"transactions"`
}

// expenses converts the posted rows, dropping income.
func (req analyzeRequest) expenses() ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(*req.Transactions))
	for i, row := range *req.Transactions {
		if strings.EqualFold(row.Type, string(core.Income)) {
			continue
		}
		d, err := dateParam(row.Date, fmt.Sprintf("transactions[%d].date", i))
		if err != nil {
			return nil, err
		}
		out = append(out, core.Transaction{
			ID:          row.ID,
			Type:        core.Expense,
			Category:    sanitizeInput(row.Category),
			Amount:      row.Amount,
			Date:        d,
			Description: sanitizeInput(row.Description),
		})
	}
	return out, nil
}

type budgetRequest struct {
	MonthlyIncome *decimal.Decimal `json:"monthlyIncome"`
}

type savingsRequest struct {
	Goal       json.RawMessage `json:"goal"`
	TargetDate string          `json:"targetDate"`
}

// goalAmount accepts either a bare amount or an object with an amount field.
func (req savingsRequest) goalAmount() (decimal.Decimal, error) {
	if len(req.Goal) == 0 || string(req.Goal) == "null" {
		return decimal.Zero, fmt.Errorf("%w: savings goal is required", errMalformed)
	}
	var amount decimal.Decimal
	if err := json.Unmarshal(req.Goal, &amount); err == nil {
		return amount, nil
	}
	var obj struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(req.Goal, &obj); err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid goal amount format", errMalformed)
	}
	return obj.Amount, nil
}

type optimizeMember struct {
	ID           any    `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	SpecialNeeds bool   `json:"specialNeeds"`
}

type optimizeRequest struct {
	FamilyMembers []optimizeMember `json:"familyMembers"`
	TotalBudget   *decimal.Decimal `json:"totalBudget"`
}

func (req optimizeRequest) members() []planner.Member {
	out := make([]planner.Member, 0, len(req.FamilyMembers))
	for _, m := range req.FamilyMembers {
		id := ""
		if m.ID != nil {
			id = fmt.Sprint(m.ID)
		}
		out = append(out, planner.Member{
			ID:           id,
			Name:         sanitizeInput(m.Name),
			Role:         strings.ToLower(strings.TrimSpace(m.Role)),
			SpecialNeeds: m.SpecialNeeds,
		})
	}
	return out
}

type reportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type predictRequest struct {
	MonthsAhead int `json:"monthsAhead"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// Advisor responses

type deviationJSON struct {
	Bucket         string  `json:"bucket"`
	CurrentPercent float64 `json:"currentPercent"`
	TargetPercent  float64 `json:"targetPercent"`
	Delta          float64 `json:"delta"`
	Message        string  `json:"message"`
}

type allocationJSON struct {
	Income       float64            `json:"income"`
	Current      map[string]float64 `json:"current"`
	Recommended  map[string]float64 `json:"recommended"`
	Deviations   []deviationJSON    `json:"deviations"`
	Unclassified []string           `json:"unclassified"`
}

func toAllocationJSON(a planner.Allocation) allocationJSON {
	out := allocationJSON{
		Income:       num(a.Income),
		Current:      make(map[string]float64, len(a.Current)),
		Recommended:  make(map[string]float64, len(a.Recommended)),
		Deviations:   make([]deviationJSON, 0, len(a.Deviations)),
		Unclassified: a.Unclassified,
	}
	for b, v := range a.Current {
		out.Current[string(b)] = ratio(v)
	}
	for b, v := range a.Recommended {
		out.Recommended[string(b)] = num(v)
	}
	for _, d := range a.Deviations {
		out.Deviations = append(out.Deviations, deviationJSON{
			Bucket:         string(d.Bucket),
			CurrentPercent: num(d.Current),
			TargetPercent:  num(d.Target),
			Delta:          num(d.Delta),
			Message:        d.Message,
		})
	}
	if out.Unclassified == nil {
		out.Unclassified = []string{}
	}
	return out
}

type unusualJSON struct {
	ID          int64   `json:"id"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
	ZScore      float64 `json:"zScore"`
}

type patternsJSON struct {
	TotalSpent            float64            `json:"totalSpent"`
	AveragePerTransaction float64            `json:"averagePerTransaction"`
	CategoryBreakdown     map[string]float64 `json:"categoryBreakdown"`
	UnusualTransactions   []unusualJSON      `json:"unusualTransactions"`
}

func toPatternsJSON(p planner.SpendingPatterns) patternsJSON {
	out := patternsJSON{
		TotalSpent:            num(p.TotalSpent),
		AveragePerTransaction: num(p.AveragePerTransaction),
		CategoryBreakdown:     make(map[string]float64, len(p.CategoryBreakdown)),
		UnusualTransactions:   make([]unusualJSON, 0, len(p.Unusual)),
	}
	for c, v := range p.CategoryBreakdown {
		out.CategoryBreakdown[c] = num(v)
	}
	for _, u := range p.Unusual {
		date := ""
		if !u.Date.IsZero() {
			date = u.Date.Format("2006-01-02")
		}
		out.UnusualTransactions = append(out.UnusualTransactions, unusualJSON{
			ID:          u.ID,
			Category:    u.Category,
			Amount:      num(u.Amount),
			Date:        date,
			Description: u.Description,
			ZScore:      math.Round(u.ZScore*100) / 100,
		})
	}
	return out
}

type savingsRecommendationJSON struct {
	Category         string  `json:"category"`
	PotentialSavings float64 `json:"potentialSavings"`
	Advice           string  `json:"advice"`
}

type savingsPlanJSON struct {
	GoalAmount      float64                     `json:"goalAmount"`
	CurrentSavings  float64                     `json:"currentSavings"`
	MonthlyIncome   float64                     `json:"monthlyIncome"`
	MonthlyExpenses float64                     `json:"monthlyExpenses"`
	RequiredMonthly float64                     `json:"requiredMonthly"`
	MonthsToGoal    int                         `json:"monthsToGoal"`
	Feasible        bool                        `json:"feasible"`
	SuggestedRate   float64                     `json:"suggestedRate"`
	Recommendations []savingsRecommendationJSON `json:"recommendations"`
}

func toSavingsPlanJSON(r services.SavingsResult) savingsPlanJSON {
	out := savingsPlanJSON{
		GoalAmount:      num(r.GoalAmount),
		CurrentSavings:  num(r.CurrentSavings),
		MonthlyIncome:   num(r.MonthlyIncome),
		MonthlyExpenses: num(r.MonthlyExpenses),
		RequiredMonthly: num(r.Plan.RequiredMonthly),
		MonthsToGoal:    r.Plan.MonthsToGoal,
		Feasible:        r.Plan.Feasible,
		SuggestedRate:   ratio(r.Plan.SuggestedRate),
		Recommendations: make([]savingsRecommendationJSON, 0, len(r.Plan.Recommendations)),
	}
	for _, rec := range r.Plan.Recommendations {
		out.Recommendations = append(out.Recommendations, savingsRecommendationJSON{
			Category:         rec.Category,
			PotentialSavings: num(rec.PotentialSavings),
			Advice:           rec.Advice,
		})
	}
	return out
}

type memberAllocationJSON struct {
	MemberID     string  `json:"memberId"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	SpecialNeeds bool    `json:"specialNeeds"`
	Weight       float64 `json:"weight"`
	Amount       float64 `json:"amount"`
}

type familyAllocationJSON struct {
	TotalBudget float64                `json:"totalBudget"`
	TotalWeight float64                `json:"totalWeight"`
	Allocations []memberAllocationJSON `json:"allocations"`
}

func toFamilyAllocationJSON(a planner.FamilyAllocation) familyAllocationJSON {
	out := familyAllocationJSON{
		TotalBudget: num(a.TotalBudget),
		TotalWeight: ratio(a.TotalWeight),
		Allocations: make([]memberAllocationJSON, 0, len(a.Allocations)),
	}
	for _, m := range a.Allocations {
		out.Allocations = append(out.Allocations, memberAllocationJSON{
			MemberID:     m.Member.ID,
			Name:         m.Member.Name,
			Role:         m.Member.Role,
			SpecialNeeds: m.Member.SpecialNeeds,
			Weight:       ratio(m.Weight),
			Amount:       num(m.Amount),
		})
	}
	return out
}

type trendJSON struct {
	CurrentMonthly float64   `json:"currentMonthly"`
	Slope          float64   `json:"slope"`
	Projected      []float64 `json:"projected"`
}

func toTrendsJSON(trends map[string]planner.Trend) map[string]trendJSON {
	out := make(map[string]trendJSON, len(trends))
	for c, t := range trends {
		tj := trendJSON{
			CurrentMonthly: num(t.CurrentMonthly),
			Slope:          num(t.Slope),
			Projected:      make([]float64, 0, len(t.Projected)),
		}
		for _, p := range t.Projected {
			tj.Projected = append(tj.Projected, num(p))
		}
		out[c] = tj
	}
	return out
}

type periodJSON struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type reportJSON struct {
	SpendingPatterns patternsJSON         `json:"spendingPatterns"`
	Predictions      map[string]trendJSON `json:"predictions"`
	Period           periodJSON           `json:"period"`
	TopCategories    []string             `json:"topCategories"`
}

func toReportJSON(r services.Report) reportJSON {
	out := reportJSON{
		SpendingPatterns: toPatternsJSON(r.Patterns),
		Predictions:      toTrendsJSON(r.Predictions),
		Period:           periodJSON{StartDate: r.From.String(), EndDate: r.To.String()},
		TopCategories:    make([]string, 0, len(r.Patterns.CategoryBreakdown)),
	}
	for c := range r.Patterns.CategoryBreakdown {
		out.TopCategories = append(out.TopCategories, c)
	}
	sort.Slice(out.TopCategories, func(i, j int) bool {
		a := r.Patterns.CategoryBreakdown[out.TopCategories[i]]
		b := r.Patterns.CategoryBreakdown[out.TopCategories[j]]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return out.TopCategories[i] < out.TopCategories[j]
	})
	return out
}
