package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"famfin/internal/core"
)

const planColumns = `id, user_id, family_id, month, expected_income, expected_expenses, notes, created_at`

func scanPlan(s rowScanner) (core.MonthlyPlan, error) {
	var (
		p        core.MonthlyPlan
		familyID sql.NullInt64
		income   string
		expenses string
		created  string
	)
	if err := s.Scan(&p.ID, &p.UserID, &familyID, &p.Month, &income, &expenses, &p.Notes, &created); err != nil {
		return core.MonthlyPlan{}, err
	}
	if err := json.Unmarshal([]byte(income), &p.ExpectedIncome); err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("decode expected income: %w", err)
	}
	if err := json.Unmarshal([]byte(expenses), &p.ExpectedExpenses); err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("decode expected expenses: %w", err)
	}
	p.FamilyID = intPtr(familyID)
	p.CreatedAt = parseTimestamp(created)
	return p, nil
}

func encodeEntries(entries []core.PlanEntry) (string, error) {
	if entries == nil {
		entries = []core.PlanEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetMonthlyPlan returns the user's plan for the month. When the user has none
// and familyID is set, any family member's plan for that month is returned.
func (r *SQLiteRepository) GetMonthlyPlan(ctx context.Context, userID int64, familyID *int64, month string) (core.MonthlyPlan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM monthly_plans WHERE user_id = ? AND month = ?`, userID, month))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || familyID == nil {
		return core.MonthlyPlan{}, fmt.Errorf("get monthly plan %s: %w", month, translate(err))
	}

	p, err = scanPlan(r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM monthly_plans WHERE family_id = ? AND month = ? ORDER BY id LIMIT 1`, *familyID, month))
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("get family monthly plan %s: %w", month, translate(err))
	}
	return p, nil
}

// CreateMonthlyPlan inserts a plan and fails with ErrConflict when the user
// already has one for the month.
func (r *SQLiteRepository) CreateMonthlyPlan(ctx context.Context, p core.MonthlyPlan) (core.MonthlyPlan, error) {
	income, err := encodeEntries(p.ExpectedIncome)
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("encode expected income: %w", err)
	}
	expenses, err := encodeEntries(p.ExpectedExpenses)
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("encode expected expenses: %w", err)
	}

	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO monthly_plans (user_id, family_id, month, expected_income, expected_expenses, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, nullInt(p.FamilyID), p.Month, income, expenses, p.Notes, now)
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("create monthly plan %s: %w", p.Month, translate(err))
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("create monthly plan: %w", err)
	}
	p.CreatedAt = parseTimestamp(now)
	return p, nil
}

// UpsertMonthlyPlan creates or replaces the user's plan for p.Month.
func (r *SQLiteRepository) UpsertMonthlyPlan(ctx context.Context, p core.MonthlyPlan) (core.MonthlyPlan, error) {
	income, err := encodeEntries(p.ExpectedIncome)
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("encode expected income: %w", err)
	}
	expenses, err := encodeEntries(p.ExpectedExpenses)
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("encode expected expenses: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO monthly_plans (user_id, family_id, month, expected_income, expected_expenses, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, month) DO UPDATE SET
		   family_id = excluded.family_id,
		   expected_income = excluded.expected_income,
		   expected_expenses = excluded.expected_expenses,
		   notes = excluded.notes`,
		p.UserID, nullInt(p.FamilyID), p.Month, income, expenses, p.Notes, r.timestamp())
	if err != nil {
		return core.MonthlyPlan{}, fmt.Errorf("upsert monthly plan %s: %w", p.Month, translate(err))
	}
	return r.GetMonthlyPlan(ctx, p.UserID, nil, p.Month)
}

func (r *SQLiteRepository) DeleteMonthlyPlan(ctx context.Context, userID int64, month string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_plans WHERE user_id = ? AND month = ?`, userID, month)
	if err != nil {
		return fmt.Errorf("delete monthly plan: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete monthly plan %s: %w", month, err)
	}
	return nil
}
