package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"famfin/internal/amqp"
	"famfin/internal/core"
	"famfin/internal/sheets"
	"famfin/internal/storage"
)

// Spending thresholds, in percent of the planned amount.
const (
	warningPercent = 80
	alertPercent   = 100
)

// AlertStore is the persistence the alert worker needs.
type AlertStore interface {
	GetMonthlyPlan(ctx context.Context, userID int64, familyID *int64, month string) (core.MonthlyPlan, error)
	CategorySpent(ctx context.Context, userID int64, familyID *int64, category, month string) (core.Money, error)
	HasNotification(ctx context.Context, userID int64, message string) (bool, error)
	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
}

// AlertWorker reacts to transaction events: it raises budget notifications
// and mirrors transactions to the configured exporter.
type AlertWorker struct {
	store    AlertStore
	exporter sheets.TransactionExporter
}

// NewAlertWorker wires the worker. exporter may be nil to skip exporting.
func NewAlertWorker(store AlertStore, exporter sheets.TransactionExporter) *AlertWorker {
	return &AlertWorker{store: store, exporter: exporter}
}

// HandleTransactionEvent processes a single transaction event from AMQP.
// Returned errors make the consumer requeue the message.
func (w *AlertWorker) HandleTransactionEvent(ctx context.Context, e amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"id", e.ID,
		"action", e.Action,
		"user_id", e.UserID)

	if e.Action == amqp.ActionDeleted {
		return w.remove(ctx, e.ID)
	}

	t, err := e.Transaction()
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		slog.ErrorContext(ctx, "Dropping malformed transaction event", "id", e.ID, "error", err)
		return nil
	}

	if t.Type == core.Expense {
		if err := w.checkBudget(ctx, t); err != nil {
			return fmt.Errorf("check budget: %w", err)
		}
	}
	return w.export(ctx, t)
}

// checkBudget compares the month's spending in t's category with the planned
// amount and records at most one notification per threshold.
func (w *AlertWorker) checkBudget(ctx context.Context, t core.Transaction) error {
	month := t.Date.MonthKey()
	plan, err := w.store.GetMonthlyPlan(ctx, t.UserID, t.FamilyID, month)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	limit, ok := plan.ExpectedExpense(t.Category)
	if !ok || limit.Cents <= 0 {
		return nil
	}
	spent, err := w.store.CategorySpent(ctx, t.UserID, spendScope(plan, t), t.Category, month)
	if err != nil {
		return err
	}

	category := plannedName(plan, t.Category)
	var n core.Notification
	switch {
	case spent.Cents*100 >= limit.Cents*alertPercent:
		n = core.Notification{
			Type:     core.NotificationAlert,
			Priority: core.PriorityHigh,
			Message:  fmt.Sprintf("Budget exceeded for %s in %s.", category, month),
		}
	case spent.Cents*100 >= limit.Cents*warningPercent:
		n = core.Notification{
			Type:     core.NotificationWarning,
			Priority: core.PriorityNormal,
			Message:  fmt.Sprintf("Approaching budget limit for %s in %s: %d%% used.", category, month, warningPercent),
		}
	default:
		return nil
	}
	n.UserID = t.UserID

	exists, err := w.store.HasNotification(ctx, n.UserID, n.Message)
	if err != nil {
		return err
	}
	if exists {
		slog.DebugContext(ctx, "Budget notification already sent", "user_id", n.UserID, "message", n.Message)
		return nil
	}
	if _, err := w.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget notification created",
		"user_id", n.UserID,
		"type", n.Type,
		"category", category,
		"spent_cents", spent.Cents,
		"limit_cents", limit.Cents)
	return nil
}

func (w *AlertWorker) export(ctx context.Context, t core.Transaction) error {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No exporter configured, skipping export", "id", t.ID)
		return nil
	}
	ref, err := w.exporter.Upsert(ctx, t)
	if err != nil {
		return fmt.Errorf("export transaction %d: %w", t.ID, err)
	}
	slog.InfoContext(ctx, "Transaction exported", "id", t.ID, "ref", ref)
	return nil
}

func (w *AlertWorker) remove(ctx context.Context, id int64) error {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No exporter configured, skipping removal", "id", id)
		return nil
	}
	if err := w.exporter.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove exported transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Exported transaction removed", "id", id)
	return nil
}

// spendScope returns the family whose spending counts against plan, or nil
// when the plan is the user's own.
func spendScope(plan core.MonthlyPlan, t core.Transaction) *int64 {
	if plan.FamilyID != nil {
		return plan.FamilyID
	}
	if plan.UserID != t.UserID {
		return t.FamilyID
	}
	return nil
}

// plannedName returns the plan's spelling of category.
func plannedName(plan core.MonthlyPlan, category string) string {
	for _, e := range plan.ExpectedExpenses {
		if strings.EqualFold(e.Category, category) {
			return e.Category
		}
	}
	return category
}
