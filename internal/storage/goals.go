package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"famfin/internal/core"
)

const goalColumns = `id, user_id, name, target_amount_cents, current_amount_cents, target_date, status, recommendations, created_at`

func scanGoal(s rowScanner) (core.SavingsGoal, error) {
	var (
		g       core.SavingsGoal
		target  string
		recs    string
		created string
	)
	if err := s.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents,
		&target, &g.Status, &recs, &created); err != nil {
		return core.SavingsGoal{}, err
	}
	if target != "" {
		d, err := core.ParseDate(target)
		if err != nil {
			return core.SavingsGoal{}, err
		}
		g.TargetDate = d
	}
	if err := json.Unmarshal([]byte(recs), &g.Recommendations); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("decode recommendations: %w", err)
	}
	g.CreatedAt = parseTimestamp(created)
	return g, nil
}

func encodeRecommendations(recs []string) (string, error) {
	if recs == nil {
		recs = []string{}
	}
	b, err := json.Marshal(recs)
	return string(b), err
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id int64) (core.SavingsGoal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM savings_goals WHERE id = ?`, id))
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get goal %d: %w", id, translate(err))
	}
	return g, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	recs, err := encodeRecommendations(g.Recommendations)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("encode recommendations: %w", err)
	}
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (user_id, name, target_amount_cents, current_amount_cents, target_date, status, recommendations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents, g.TargetDate.String(), g.Status, recs, now)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", translate(err))
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", err)
	}
	g.CreatedAt = parseTimestamp(now)
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.SavingsGoal) error {
	recs, err := encodeRecommendations(g.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE savings_goals SET name = ?, target_amount_cents = ?, current_amount_cents = ?, target_date = ?,
		 status = ?, recommendations = ? WHERE id = ? AND user_id = ?`,
		g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents, g.TargetDate.String(), g.Status, recs, g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal: %w", translate(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	return nil
}
