package services

import (
	"context"
	"errors"
	"testing"

	"famfin/internal/core"
	"famfin/internal/sheets/memory"
)

type fakeUserStore struct {
	users  map[int64]core.User
	seeded map[int64][]core.Category
}

func (f *fakeUserStore) EnsureUser(_ context.Context, u core.User) (core.User, bool, error) {
	if existing, ok := f.users[u.ID]; ok {
		return existing, false, nil
	}
	f.users[u.ID] = u
	return u, true, nil
}

func (f *fakeUserStore) SeedCategories(_ context.Context, userID int64, defaults []core.Category) error {
	f.seeded[userID] = append(f.seeded[userID], defaults...)
	return nil
}

func TestUserServiceResolveSeedsNewUsers(t *testing.T) {
	store := &fakeUserStore{users: map[int64]core.User{}, seeded: map[int64][]core.Category{}}
	svc := NewUserService(store, memory.New([]string{"Housing", "Groceries"}, []string{"Salary"}))
	ctx := context.Background()

	u, err := svc.Resolve(ctx, 4, "", " ada@example.com ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.Name != "user-4" || u.Email != "ada@example.com" {
		t.Errorf("unexpected user %+v", u)
	}
	cats := store.seeded[4]
	if len(cats) != 3 || cats[0].Type != core.Expense || cats[2].Name != "Salary" || cats[2].Type != core.Income {
		t.Errorf("seeded = %+v", cats)
	}

	if _, err := svc.Resolve(ctx, 4, "Ada", ""); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if len(store.seeded[4]) != 3 {
		t.Error("existing users must not be seeded again")
	}

	if _, err := svc.Resolve(ctx, 0, "", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("id 0: err = %v, want ErrValidation", err)
	}
}

func TestUserServiceWithoutDefaults(t *testing.T) {
	store := &fakeUserStore{users: map[int64]core.User{}, seeded: map[int64][]core.Category{}}
	svc := NewUserService(store, nil)
	if _, err := svc.Resolve(context.Background(), 1, "Bo", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(store.seeded) != 0 {
		t.Error("nothing should be seeded without a category source")
	}
}
