package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"famfin/internal/core"
)

const categoryColumns = `id, user_id, family_id, name, type, icon, color, description, suggested_limit_cents, created_at`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c        core.Category
		familyID sql.NullInt64
		limit    sql.NullInt64
		created  string
	)
	if err := s.Scan(&c.ID, &c.UserID, &familyID, &c.Name, &c.Type, &c.Icon, &c.Color, &c.Description, &limit, &created); err != nil {
		return core.Category{}, err
	}
	c.FamilyID = intPtr(familyID)
	if limit.Valid {
		c.SuggestedLimit = &core.Money{Cents: limit.Int64}
	}
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

func limitCents(m *core.Money) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: m.Cents, Valid: true}
}

// ListCategories returns the user's categories, optionally filtered by type,
// ordered by type then name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, translate(err))
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, family_id, name, type, icon, color, description, suggested_limit_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, nullInt(c.FamilyID), c.Name, c.Type, c.Icon, c.Color, c.Description, limitCents(c.SuggestedLimit), now)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, translate(err))
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.CreatedAt = parseTimestamp(now)
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, icon = ?, color = ?, description = ?, suggested_limit_cents = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Type, c.Icon, c.Color, c.Description, limitCents(c.SuggestedLimit), c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", translate(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

// SeedCategories inserts the given categories for a user, skipping names the
// user already has.
func (r *SQLiteRepository) SeedCategories(ctx context.Context, userID int64, defaults []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.timestamp()
	inserted := 0
	for _, c := range defaults {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (user_id, name, type, icon, color, description, suggested_limit_cents, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, name, type) DO NOTHING`,
			userID, c.Name, c.Type, c.Icon, c.Color, c.Description, limitCents(c.SuggestedLimit), now)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Default categories seeded", "user_id", userID, "inserted", inserted)
	return nil
}
