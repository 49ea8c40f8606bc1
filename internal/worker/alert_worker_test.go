package worker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"famfin/internal/amqp"
	"famfin/internal/core"
	"famfin/internal/sheets/memory"
	"famfin/internal/storage"
)

type fakeStore struct {
	plans         map[string]core.MonthlyPlan
	spent         map[string]int64
	spentScope    *int64
	notifications []core.Notification
	planErr       error
}

func (f *fakeStore) GetMonthlyPlan(_ context.Context, _ int64, _ *int64, month string) (core.MonthlyPlan, error) {
	if f.planErr != nil {
		return core.MonthlyPlan{}, f.planErr
	}
	p, ok := f.plans[month]
	if !ok {
		return core.MonthlyPlan{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) CategorySpent(_ context.Context, _ int64, familyID *int64, category, month string) (core.Money, error) {
	f.spentScope = familyID
	return core.Money{Cents: f.spent[strings.ToLower(category)+"/"+month]}, nil
}

func (f *fakeStore) HasNotification(_ context.Context, userID int64, message string) (bool, error) {
	for _, n := range f.notifications {
		if n.UserID == userID && n.Message == message {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateNotification(_ context.Context, n core.Notification) (core.Notification, error) {
	n.ID = int64(len(f.notifications) + 1)
	f.notifications = append(f.notifications, n)
	return n, nil
}

func newStore() *fakeStore {
	return &fakeStore{
		plans: map[string]core.MonthlyPlan{
			"2024-06": {
				UserID: 1,
				Month:  "2024-06",
				ExpectedExpenses: []core.PlanEntry{
					{Category: "Groceries", Amount: core.Money{Cents: 40000}},
				},
			},
		},
		spent: map[string]int64{},
	}
}

func expenseEvent(action amqp.Action, id int64, category string) amqp.TransactionEvent {
	return amqp.NewTransactionEvent(action, core.Transaction{
		ID:       id,
		UserID:   1,
		Type:     core.Expense,
		Amount:   core.Money{Cents: 1000},
		Category: category,
		Date:     core.NewDate(2024, 6, 10),
	})
}

func TestAlertWorkerThresholds(t *testing.T) {
	tests := []struct {
		name     string
		spent    int64
		wantType core.NotificationType
		wantPrio core.Priority
	}{
		{"under warning", 31999, "", ""},
		{"at warning", 32000, core.NotificationWarning, core.PriorityNormal},
		{"at limit", 40000, core.NotificationAlert, core.PriorityHigh},
		{"over limit", 55000, core.NotificationAlert, core.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			store.spent["groceries/2024-06"] = tt.spent
			w := NewAlertWorker(store, nil)

			if err := w.HandleTransactionEvent(context.Background(), expenseEvent(amqp.ActionCreated, 1, "groceries")); err != nil {
				t.Fatalf("HandleTransactionEvent: %v", err)
			}
			if tt.wantType == "" {
				if len(store.notifications) != 0 {
					t.Errorf("unexpected notifications %+v", store.notifications)
				}
				return
			}
			if len(store.notifications) != 1 {
				t.Fatalf("notifications = %d, want 1", len(store.notifications))
			}
			n := store.notifications[0]
			if n.Type != tt.wantType || n.Priority != tt.wantPrio || n.UserID != 1 {
				t.Errorf("unexpected notification %+v", n)
			}
			if !strings.Contains(n.Message, "Groceries") || !strings.Contains(n.Message, "2024-06") {
				t.Errorf("message should name the planned category and month: %q", n.Message)
			}
			if err := n.Validate(); err != nil {
				t.Errorf("notification invalid: %v", err)
			}
		})
	}
}

func TestAlertWorkerDeduplicates(t *testing.T) {
	store := newStore()
	store.spent["groceries/2024-06"] = 45000
	w := NewAlertWorker(store, nil)

	for i := int64(1); i <= 3; i++ {
		if err := w.HandleTransactionEvent(context.Background(), expenseEvent(amqp.ActionCreated, i, "Groceries")); err != nil {
			t.Fatalf("HandleTransactionEvent: %v", err)
		}
	}
	if len(store.notifications) != 1 {
		t.Errorf("notifications = %d, want 1", len(store.notifications))
	}
}

func TestAlertWorkerSkipsWithoutPlan(t *testing.T) {
	store := newStore()
	store.spent["dining/2024-06"] = 99999
	w := NewAlertWorker(store, nil)

	if err := w.HandleTransactionEvent(context.Background(), expenseEvent(amqp.ActionCreated, 1, "Dining")); err != nil {
		t.Fatalf("unplanned category: %v", err)
	}
	july := expenseEvent(amqp.ActionCreated, 2, "Groceries")
	july.Date = "2024-07-01"
	if err := w.HandleTransactionEvent(context.Background(), july); err != nil {
		t.Fatalf("month without plan: %v", err)
	}
	if len(store.notifications) != 0 {
		t.Errorf("unexpected notifications %+v", store.notifications)
	}

	store.planErr = errors.New("database is locked")
	if err := w.HandleTransactionEvent(context.Background(), expenseEvent(amqp.ActionCreated, 3, "Groceries")); err == nil {
		t.Error("storage failures should be returned for requeue")
	}
}

func TestAlertWorkerIgnoresIncomeForBudget(t *testing.T) {
	store := newStore()
	store.spent["groceries/2024-06"] = 50000
	w := NewAlertWorker(store, nil)

	e := expenseEvent(amqp.ActionCreated, 1, "Groceries")
	e.Type = core.Income
	if err := w.HandleTransactionEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleTransactionEvent: %v", err)
	}
	if len(store.notifications) != 0 {
		t.Error("income must not trigger budget notifications")
	}
}

func TestAlertWorkerExports(t *testing.T) {
	store := newStore()
	exporter := memory.New(nil, nil)
	w := NewAlertWorker(store, exporter)
	ctx := context.Background()

	if err := w.HandleTransactionEvent(ctx, expenseEvent(amqp.ActionCreated, 5, "Groceries")); err != nil {
		t.Fatalf("created: %v", err)
	}
	updated := expenseEvent(amqp.ActionUpdated, 5, "Groceries")
	updated.AmountCents = 2500
	if err := w.HandleTransactionEvent(ctx, updated); err != nil {
		t.Fatalf("updated: %v", err)
	}
	rows := exporter.Rows()
	if len(rows) != 1 || rows[0][0] != int64(5) || rows[0][5] != 25.0 {
		t.Fatalf("rows = %v", rows)
	}

	if err := w.HandleTransactionEvent(ctx, expenseEvent(amqp.ActionDeleted, 5, "Groceries")); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if len(exporter.Rows()) != 0 {
		t.Error("row not removed after delete event")
	}
}

func TestAlertWorkerDropsMalformedEvent(t *testing.T) {
	store := newStore()
	exporter := memory.New(nil, nil)
	w := NewAlertWorker(store, exporter)

	e := expenseEvent(amqp.ActionCreated, 9, "Groceries")
	e.Date = "not-a-date"
	if err := w.HandleTransactionEvent(context.Background(), e); err != nil {
		t.Fatalf("malformed events should be dropped, got %v", err)
	}
	if len(exporter.Rows()) != 0 {
		t.Error("malformed event must not be exported")
	}
}

func TestAlertWorkerOwnPlanCountsOwnSpending(t *testing.T) {
	store := newStore()
	store.spent["groceries/2024-06"] = 1000
	w := NewAlertWorker(store, nil)

	family := int64(4)
	e := amqp.NewTransactionEvent(amqp.ActionCreated, core.Transaction{
		ID: 1, UserID: 1, FamilyID: &family, Type: core.Expense,
		Amount: core.Money{Cents: 1000}, Category: "Groceries", Date: core.NewDate(2024, 6, 10),
	})
	if err := w.HandleTransactionEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleTransactionEvent: %v", err)
	}
	if store.spentScope != nil {
		t.Errorf("personal plan summed family %d spending", *store.spentScope)
	}
}

func TestAlertWorkerFamilyPlanCountsFamilySpending(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "famfin.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if _, _, err := repo.EnsureUser(ctx, core.User{ID: id, Name: "member", Email: "m@example.com"}); err != nil {
			t.Fatalf("EnsureUser(%d): %v", id, err)
		}
	}
	fam, err := repo.CreateFamily(ctx, "Verdi", 1)
	if err != nil {
		t.Fatalf("CreateFamily: %v", err)
	}
	if err := repo.SetUserFamily(ctx, 2, &fam.ID, false); err != nil {
		t.Fatalf("SetUserFamily: %v", err)
	}
	if _, err := repo.UpsertMonthlyPlan(ctx, core.MonthlyPlan{
		UserID:           1,
		FamilyID:         &fam.ID,
		Month:            "2024-06",
		ExpectedExpenses: []core.PlanEntry{{Category: "Groceries", Amount: core.Money{Cents: 50000}}},
	}); err != nil {
		t.Fatalf("UpsertMonthlyPlan: %v", err)
	}

	w := NewAlertWorker(repo, nil)
	for i, userID := range []int64{1, 2} {
		tx, err := repo.CreateTransaction(ctx, core.Transaction{
			UserID: userID, FamilyID: &fam.ID, Type: core.Expense,
			Amount: core.Money{Cents: 45000}, Category: "Groceries", Date: core.NewDate(2024, 6, 5+i),
		})
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		if err := w.HandleTransactionEvent(ctx, amqp.NewTransactionEvent(amqp.ActionCreated, tx)); err != nil {
			t.Fatalf("HandleTransactionEvent for user %d: %v", userID, err)
		}
	}

	first, err := repo.ListNotifications(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(first) != 1 || first[0].Type != core.NotificationWarning {
		t.Errorf("first member notifications = %+v, want one warning", first)
	}
	second, err := repo.ListNotifications(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(second) != 1 || second[0].Type != core.NotificationAlert || second[0].Priority != core.PriorityHigh {
		t.Errorf("second member notifications = %+v, want one high-priority alert", second)
	}
}
