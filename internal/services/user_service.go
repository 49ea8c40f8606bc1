package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"famfin/internal/core"
	"famfin/internal/sheets"
)

// UserStore is the persistence the user service needs.
type UserStore interface {
	EnsureUser(ctx context.Context, u core.User) (core.User, bool, error)
	SeedCategories(ctx context.Context, userID int64, defaults []core.Category) error
}

// UserService resolves callers into stored users, registering them on first
// sight with a default category set.
type UserService struct {
	store    UserStore
	defaults sheets.CategoryReader
}

// NewUserService wires the service. defaults may be nil to skip seeding.
func NewUserService(store UserStore, defaults sheets.CategoryReader) *UserService {
	return &UserService{store: store, defaults: defaults}
}

// Resolve returns the stored user for id, creating it from the supplied
// profile when unknown.
func (s *UserService) Resolve(ctx context.Context, id int64, name, email string) (core.User, error) {
	if id <= 0 {
		return core.User{}, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("user-%d", id)
	}

	u, created, err := s.store.EnsureUser(ctx, core.User{ID: id, Name: name, Email: strings.TrimSpace(email)})
	if err != nil {
		return core.User{}, err
	}
	if created {
		if err := s.seed(ctx, id); err != nil {
			// The account exists; categories can be added by hand.
			slog.WarnContext(ctx, "Failed to seed default categories", "user_id", id, "error", err)
		}
	}
	return u, nil
}

func (s *UserService) seed(ctx context.Context, userID int64) error {
	if s.defaults == nil {
		return nil
	}
	expense, income, err := s.defaults.List(ctx)
	if err != nil {
		return fmt.Errorf("list default categories: %w", err)
	}
	cats := make([]core.Category, 0, len(expense)+len(income))
	for _, name := range expense {
		cats = append(cats, core.Category{UserID: userID, Name: name, Type: core.Expense})
	}
	for _, name := range income {
		cats = append(cats, core.Category{UserID: userID, Name: name, Type: core.Income})
	}
	return s.store.SeedCategories(ctx, userID, cats)
}
