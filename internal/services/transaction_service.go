package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"famfin/internal/amqp"
	"famfin/internal/core"
)

var (
	// ErrValidation wraps domain validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden is returned when a user touches another user's record.
	ErrForbidden = errors.New("forbidden")
)

// EventPublisher sends transaction events to the message broker.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, e amqp.TransactionEvent) error
}

// TransactionStore is the persistence the transaction service needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, month string) ([]core.Transaction, error)
	ListFamilyTransactions(ctx context.Context, familyID int64, month string) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id int64) error
}

// TransactionService orchestrates transaction writes across SQLite and AMQP.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
}

// NewTransactionService wires the service. publisher may be nil, in which case
// events are skipped.
func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher}
}

// Create stores a transaction for user and publishes a created event.
func (s *TransactionService) Create(ctx context.Context, user core.User, t core.Transaction) (core.Transaction, error) {
	t.ID = 0
	t.UserID = user.ID
	t.FamilyID = user.FamilyID
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// Save to SQLite first; the event is best effort.
	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, amqp.ActionCreated, created)
	return created, nil
}

// Update replaces the editable fields of a transaction owned by user.
func (s *TransactionService) Update(ctx context.Context, user core.User, t core.Transaction) (core.Transaction, error) {
	existing, err := s.owned(ctx, user, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	t.UserID = existing.UserID
	t.FamilyID = existing.FamilyID
	t.CreatedAt = existing.CreatedAt
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.publish(ctx, amqp.ActionUpdated, t)
	return t, nil
}

// Delete removes a transaction owned by user and publishes a deleted event
// carrying its last state.
func (s *TransactionService) Delete(ctx context.Context, user core.User, id int64) error {
	existing, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, user.ID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.publish(ctx, amqp.ActionDeleted, existing)
	return nil
}

// Get returns a transaction owned by user.
func (s *TransactionService) Get(ctx context.Context, user core.User, id int64) (core.Transaction, error) {
	return s.owned(ctx, user, id)
}

// List returns the user's transactions for a YYYY-MM month, or all of them.
func (s *TransactionService) List(ctx context.Context, user core.User, month string) ([]core.Transaction, error) {
	if month != "" {
		if _, err := core.ParseMonth(month); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return s.store.ListTransactions(ctx, user.ID, month)
}

// ListFamily returns every transaction booked against the user's family.
// Users without a family get their own list.
func (s *TransactionService) ListFamily(ctx context.Context, user core.User, month string) ([]core.Transaction, error) {
	if user.FamilyID == nil {
		return s.List(ctx, user, month)
	}
	if month != "" {
		if _, err := core.ParseMonth(month); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return s.store.ListFamilyTransactions(ctx, *user.FamilyID, month)
}

func (s *TransactionService) owned(ctx context.Context, user core.User, id int64) (core.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if existing.UserID != user.ID {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrForbidden)
	}
	return existing, nil
}

func (s *TransactionService) publish(ctx context.Context, action amqp.Action, t core.Transaction) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping transaction event",
			"id", t.ID, "action", action)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(action, t)); err != nil {
		// The write already succeeded locally.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", t.ID, "action", action, "error", err)
	}
}
