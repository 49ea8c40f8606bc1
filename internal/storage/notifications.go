package storage

import (
	"context"
	"fmt"
	"log/slog"

	"famfin/internal/core"
)

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, message, priority, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Message, n.Priority, boolInt(n.Read), now)
	if err != nil {
		return core.Notification{}, fmt.Errorf("create notification: %w", translate(err))
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return core.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n.CreatedAt = parseTimestamp(now)

	slog.InfoContext(ctx, "Notification created",
		"id", n.ID,
		"user_id", n.UserID,
		"type", n.Type,
		"priority", n.Priority)
	return n, nil
}

// ListNotifications returns the user's notifications, newest first. A
// non-positive limit returns all of them.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID int64, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, message, priority, is_read, created_at FROM notifications
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n       core.Notification
			read    int
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Priority, &read, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read == 1
		n.CreatedAt = parseTimestamp(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// HasNotification reports whether the user already has a notification with
// exactly this message.
func (r *SQLiteRepository) HasNotification(ctx context.Context, userID int64, message string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notifications WHERE user_id = ? AND message = ?`, userID, message).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}
