package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/storage"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, user core.User) error {
	typ := core.TransactionType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if typ != "" && !typ.Valid() {
		return fmt.Errorf("%w: type must be income or expense", errMalformed)
	}
	cats, err := s.store.ListCategories(r.Context(), user.ID, typ)
	if err != nil {
		return err
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	c := core.Category{UserID: user.ID}
	req.apply(&c, user)
	if err := c.Validate(); err != nil {
		return invalid(err)
	}
	created, err := s.store.CreateCategory(r.Context(), c)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Category created",
		log.FieldCategory, created.Name, log.FieldOperation, log.OpCreate)
	writeJSON(w, http.StatusCreated, toCategoryJSON(created))
	return nil
}

// handleUpdateCategory edits a category. Sharing is fixed at creation.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	c, err := s.ownCategory(r, user, id)
	if err != nil {
		return err
	}
	req.Shared = nil
	req.apply(&c, user)
	if err := c.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.store.UpdateCategory(r.Context(), c); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toCategoryJSON(c))
	return nil
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategory(r.Context(), user.ID, id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
	return nil
}

// ownCategory loads a category, hiding other users' categories as not found.
func (s *Server) ownCategory(r *http.Request, user core.User, id int64) (core.Category, error) {
	c, err := s.store.GetCategory(r.Context(), id)
	if err != nil {
		return core.Category{}, err
	}
	if c.UserID != user.ID {
		return core.Category{}, fmt.Errorf("category %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func planMonth(r *http.Request) (string, error) {
	month, err := monthParam(r.PathValue("month"))
	if err != nil {
		return "", err
	}
	if month == "" {
		return "", fmt.Errorf("%w: month is required", errMalformed)
	}
	return month, nil
}

// handleGetPlan returns the caller's plan, falling back to the family's. A
// month without a plan yields an empty one.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := planMonth(r)
	if err != nil {
		return err
	}
	p, err := s.store.GetMonthlyPlan(r.Context(), user.ID, user.FamilyID, month)
	if errors.Is(err, storage.ErrNotFound) {
		p, err = core.MonthlyPlan{Month: month}, nil
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toPlanJSON(p))
	return nil
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := planMonth(r)
	if err != nil {
		return err
	}
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	p := core.MonthlyPlan{UserID: user.ID, Month: month}
	req.apply(&p, user)
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	created, err := s.store.CreateMonthlyPlan(r.Context(), p)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Monthly plan created",
		log.FieldMonth, month, log.FieldOperation, log.OpCreate)
	writeJSON(w, http.StatusCreated, toPlanJSON(created))
	return nil
}

// handleSavePlan creates or updates the caller's own plan; fields missing
// from the body keep their stored values.
func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := planMonth(r)
	if err != nil {
		return err
	}
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	p, err := s.store.GetMonthlyPlan(r.Context(), user.ID, nil, month)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p = core.MonthlyPlan{UserID: user.ID, Month: month}
	case err != nil:
		return err
	}
	req.apply(&p, user)
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	saved, err := s.store.UpsertMonthlyPlan(r.Context(), p)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Monthly plan saved",
		log.FieldMonth, month, log.FieldOperation, log.OpUpdate)
	writeJSON(w, http.StatusOK, toPlanJSON(saved))
	return nil
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := planMonth(r)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMonthlyPlan(r.Context(), user.ID, month); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Monthly plan deleted"})
	return nil
}
