// Package core holds the domain types and money handling.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

const (
	NotificationAlert   NotificationType = "alert"
	NotificationWarning NotificationType = "warning"
	NotificationTip     NotificationType = "tip"
	NotificationInfo    NotificationType = "info"
)

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Family roles understood by the budget optimiser. Any other role is accepted
// and weighted neutrally.
const (
	RolePrimaryEarner = "primary_earner"
	RoleDependent     = "dependent"
)

type (
	TransactionType  string
	GoalStatus       string
	NotificationType string
	Priority         string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID            int64
		Email         string
		Name          string
		FamilyID      *int64
		IsFamilyAdmin bool
		CreatedAt     time.Time
	}

	Family struct {
		ID        int64
		Name      string
		CreatedBy int64
		CreatedAt time.Time
	}

	FamilyMember struct {
		ID           int64
		FamilyID     int64
		Name         string
		Role         string
		Icon         string
		Color        string
		SpecialNeeds bool
		UserID       *int64
		CreatedAt    time.Time
	}

	Category struct {
		ID             int64
		UserID         int64
		FamilyID       *int64
		Name           string
		Type           TransactionType
		Icon           string
		Color          string
		Description    string
		SuggestedLimit *Money
		CreatedAt      time.Time
	}

	Transaction struct {
		ID           int64
		UserID       int64
		FamilyID     *int64
		Type         TransactionType
		Amount       Money
		Category     string
		Description  string
		Date         Date
		FamilyMember string
		IsRecurring  bool
		CreatedAt    time.Time
	}

	PlanEntry struct {
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
	}

	MonthlyPlan struct {
		ID               int64
		UserID           int64
		FamilyID         *int64
		Month            string // YYYY-MM
		ExpectedIncome   []PlanEntry
		ExpectedExpenses []PlanEntry
		Notes            string
		CreatedAt        time.Time
	}

	SavingsGoal struct {
		ID              int64
		UserID          int64
		Name            string
		TargetAmount    Money
		CurrentAmount   Money
		TargetDate      Date // zero when open-ended
		Status          GoalStatus
		Recommendations []string
		CreatedAt       time.Time
	}

	Notification struct {
		ID        int64
		UserID    int64
		Type      NotificationType
		Message   string
		Priority  Priority
		Read      bool
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrMessageLong      = errors.New("message too long (max 255 characters)")
	ErrEmptyRole        = errors.New("empty role")
	ErrGoalReached      = errors.New("target amount must exceed current amount")
	ErrInvalidStatus    = errors.New("invalid goal status")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthKey returns the YYYY-MM key the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// String formats the date as YYYY-MM-DD, or "" when zero.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (open-ended goals)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// ParseMonth validates a YYYY-MM key and returns the first day of that month.
func ParseMonth(month string) (Date, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return Date{}, ErrInvalidMonth
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return errors.New("category name too long (max 50 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if len(c.Description) > 200 {
		return ErrDescriptionLong
	}
	if c.SuggestedLimit != nil && c.SuggestedLimit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p MonthlyPlan) Validate() error {
	if _, err := ParseMonth(p.Month); err != nil {
		return err
	}
	for _, e := range append(append([]PlanEntry(nil), p.ExpectedIncome...), p.ExpectedExpenses...) {
		if strings.TrimSpace(e.Category) == "" {
			return ErrEmptyCategory
		}
		if e.Amount.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// TotalIncome sums the plan's expected income entries.
func (p MonthlyPlan) TotalIncome() Money {
	return sumEntries(p.ExpectedIncome, nil)
}

// SavingsIncome sums expected income entries booked under a savings-like
// category (matched case-insensitively).
func (p MonthlyPlan) SavingsIncome(savingsCategories []string) Money {
	set := make(map[string]struct{}, len(savingsCategories))
	for _, c := range savingsCategories {
		set[strings.ToLower(c)] = struct{}{}
	}
	return sumEntries(p.ExpectedIncome, set)
}

// ExpectedExpense returns the planned amount for a category, if planned.
func (p MonthlyPlan) ExpectedExpense(category string) (Money, bool) {
	var total Money
	found := false
	for _, e := range p.ExpectedExpenses {
		if strings.EqualFold(e.Category, category) {
			total.Cents += e.Amount.Cents
			found = true
		}
	}
	return total, found
}

func sumEntries(entries []PlanEntry, only map[string]struct{}) Money {
	var total Money
	for _, e := range entries {
		if only != nil {
			if _, ok := only[strings.ToLower(e.Category)]; !ok {
				continue
			}
		}
		total.Cents += e.Amount.Cents
	}
	return total
}

func (m FamilyMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if len(m.Name) > 50 {
		return errors.New("member name too long (max 50 characters)")
	}
	if strings.TrimSpace(m.Role) == "" {
		return ErrEmptyRole
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if g.Status == GoalActive && g.TargetAmount.Cents <= g.CurrentAmount.Cents {
		return ErrGoalReached
	}
	switch g.Status {
	case GoalActive, GoalCompleted, GoalCancelled:
	default:
		return ErrInvalidStatus
	}
	return nil
}

func (n Notification) Validate() error {
	if strings.TrimSpace(n.Message) == "" {
		return errors.New("empty message")
	}
	if len(n.Message) > 255 {
		return ErrMessageLong
	}
	switch n.Type {
	case NotificationAlert, NotificationWarning, NotificationTip, NotificationInfo:
	default:
		return errors.New("invalid notification type")
	}
	switch n.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
	default:
		return errors.New("invalid notification priority")
	}
	return nil
}
