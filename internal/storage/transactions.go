package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"famfin/internal/core"
)

const transactionColumns = `id, user_id, family_id, type, amount_cents, category, description, date, family_member, is_recurring, created_at`

const dateLayout = "2006-01-02"

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		familyID  sql.NullInt64
		date      string
		recurring int
		created   string
	)
	if err := s.Scan(&t.ID, &t.UserID, &familyID, &t.Type, &t.Amount.Cents, &t.Category, &t.Description,
		&date, &t.FamilyMember, &recurring, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.FamilyID = intPtr(familyID)
	t.IsRecurring = recurring == 1
	t.CreatedAt = parseTimestamp(created)
	return t, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, family_id, type, amount_cents, category, description, date, family_member, is_recurring, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullInt(t.FamilyID), t.Type, t.Amount.Cents, t.Category, t.Description,
		t.Date.Format(dateLayout), t.FamilyMember, boolInt(t.IsRecurring), now)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", translate(err))
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.CreatedAt = parseTimestamp(now)

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"category", t.Category,
		"date", t.Date.String())
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, translate(err))
	}
	return t, nil
}

// ListTransactions returns the user's transactions, newest first. An empty
// month lists everything.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, month string) ([]core.Transaction, error) {
	if month == "" {
		return r.queryTransactions(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	}
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND substr(date, 1, 7) = ?
		 ORDER BY date DESC, id DESC`, userID, month)
}

// ListFamilyTransactions returns every transaction booked against the family.
func (r *SQLiteRepository) ListFamilyTransactions(ctx context.Context, familyID int64, month string) ([]core.Transaction, error) {
	if month == "" {
		return r.queryTransactions(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE family_id = ? ORDER BY date DESC, id DESC`, familyID)
	}
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE family_id = ? AND substr(date, 1, 7) = ?
		 ORDER BY date DESC, id DESC`, familyID, month)
}

// ListTransactionsBetween returns the user's transactions of the given type
// dated within [from, to], oldest first. An empty type matches both.
func (r *SQLiteRepository) ListTransactionsBetween(ctx context.Context, userID int64, typ core.TransactionType, from, to core.Date) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? AND date >= ? AND date <= ?`
	args := []any{userID, from.Format(dateLayout), to.Format(dateLayout)}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	return r.queryTransactions(ctx, query+` ORDER BY date, id`, args...)
}

// ListFamilyTransactionsBetween is ListTransactionsBetween for every
// transaction booked against a family.
func (r *SQLiteRepository) ListFamilyTransactionsBetween(ctx context.Context, familyID int64, typ core.TransactionType, from, to core.Date) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE family_id = ? AND date >= ? AND date <= ?`
	args := []any{familyID, from.Format(dateLayout), to.Format(dateLayout)}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	return r.queryTransactions(ctx, query+` ORDER BY date, id`, args...)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET type = ?, amount_cents = ?, category = ?, description = ?, date = ?,
		 family_member = ?, is_recurring = ? WHERE id = ? AND user_id = ?`,
		t.Type, t.Amount.Cents, t.Category, t.Description, t.Date.Format(dateLayout),
		t.FamilyMember, boolInt(t.IsRecurring), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", translate(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

// Totals sums income and expenses for a user, or for a family when familyID
// is set. An empty month covers all time.
func (r *SQLiteRepository) Totals(ctx context.Context, userID int64, familyID *int64, month string) (core.Totals, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
		COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		FROM transactions WHERE `
	var args []any
	if familyID != nil {
		query += `(family_id = ? OR user_id = ?)`
		args = append(args, *familyID, userID)
	} else {
		query += `user_id = ?`
		args = append(args, userID)
	}
	if month != "" {
		query += ` AND substr(date, 1, 7) = ?`
		args = append(args, month)
	}

	var t core.Totals
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.Income.Cents, &t.Expenses.Cents); err != nil {
		return core.Totals{}, fmt.Errorf("compute totals: %w", err)
	}
	return t, nil
}

// CategoryTotals sums the month's expenses per category for a user, or for a
// family when familyID is set.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, familyID *int64, month string) ([]core.CategoryAmount, error) {
	query := `SELECT category, SUM(amount_cents) FROM transactions WHERE type = 'expense' AND `
	var args []any
	if familyID != nil {
		query += `(family_id = ? OR user_id = ?)`
		args = append(args, *familyID, userID)
	} else {
		query += `user_id = ?`
		args = append(args, userID)
	}
	if month != "" {
		query += ` AND substr(date, 1, 7) = ?`
		args = append(args, month)
	}
	query += ` GROUP BY category ORDER BY SUM(amount_cents) DESC, category`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// CategorySpent returns the expense total for one category in a month, for a
// user or, when familyID is set, for the whole family.
func (r *SQLiteRepository) CategorySpent(ctx context.Context, userID int64, familyID *int64, category, month string) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE `
	var args []any
	if familyID != nil {
		query += `(family_id = ? OR user_id = ?)`
		args = append(args, *familyID, userID)
	} else {
		query += `user_id = ?`
		args = append(args, userID)
	}
	query += ` AND type = 'expense' AND category = ? COLLATE NOCASE AND substr(date, 1, 7) = ?`
	args = append(args, category, month)

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("category spent: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
