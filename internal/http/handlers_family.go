package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/services"
	"famfin/internal/storage"
)

var errNoFamily = fmt.Errorf("user is not part of a family: %w", storage.ErrNotFound)

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if user.FamilyID != nil {
		return fmt.Errorf("user already belongs to family %d: %w", *user.FamilyID, storage.ErrConflict)
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		return invalid(core.ErrEmptyName)
	}
	if len(name) > 100 {
		return invalid(errors.New("family name too long (max 100 characters)"))
	}

	fam, err := s.store.CreateFamily(r.Context(), name, user.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, toFamilyJSON(fam, nil, true))
	return nil
}

func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request, user core.User) error {
	if user.FamilyID == nil {
		return errNoFamily
	}
	fam, err := s.store.GetFamily(r.Context(), *user.FamilyID)
	if err != nil {
		return err
	}
	members, err := s.store.ListMembers(r.Context(), fam.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toFamilyJSON(fam, members, user.IsFamilyAdmin))
	return nil
}

// familyAdmin returns the caller's family id when they may manage members.
func familyAdmin(user core.User) (int64, error) {
	if user.FamilyID == nil {
		return 0, errNoFamily
	}
	if !user.IsFamilyAdmin {
		return 0, fmt.Errorf("%w: only the family admin can manage members", services.ErrForbidden)
	}
	return *user.FamilyID, nil
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request, user core.User) error {
	familyID, err := familyAdmin(user)
	if err != nil {
		return err
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	m := core.FamilyMember{FamilyID: familyID}
	req.apply(&m)
	if err := m.Validate(); err != nil {
		return invalid(err)
	}
	created, err := s.store.AddMember(r.Context(), m)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Family member added",
		"member_id", created.ID, "role", created.Role)
	writeJSON(w, http.StatusCreated, toMemberJSON(created))
	return nil
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request, user core.User) error {
	familyID, err := familyAdmin(user)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	m, err := s.store.GetMember(r.Context(), id)
	if err != nil {
		return err
	}
	if m.FamilyID != familyID {
		return fmt.Errorf("member %d: %w", id, storage.ErrNotFound)
	}
	req.apply(&m)
	if err := m.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.store.UpdateMember(r.Context(), m); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toMemberJSON(m))
	return nil
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request, user core.User) error {
	familyID, err := familyAdmin(user)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteMember(r.Context(), familyID, id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Family member removed"})
	return nil
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, user core.User) error {
	goals, err := s.store.ListGoals(r.Context(), user.ID)
	if err != nil {
		return err
	}
	out := make([]goalJSON, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalJSON(g))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	g := core.SavingsGoal{UserID: user.ID, Status: core.GoalActive}
	if err := req.apply(&g); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return invalid(err)
	}
	g.Recommendations = s.goalRecommendations(r.Context(), user, g)

	created, err := s.store.CreateGoal(r.Context(), g)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, toGoalJSON(created))
	return nil
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	g, err := s.store.GetGoal(r.Context(), id)
	if err != nil {
		return err
	}
	if g.UserID != user.ID {
		return fmt.Errorf("goal %d: %w", id, storage.ErrNotFound)
	}
	if err := req.apply(&g); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return invalid(err)
	}
	if req.TargetAmount != nil || req.CurrentAmount != nil || req.TargetDate != nil || req.Status != nil {
		g.Recommendations = s.goalRecommendations(r.Context(), user, g)
	}
	if err := s.store.UpdateGoal(r.Context(), g); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toGoalJSON(g))
	return nil
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteGoal(r.Context(), user.ID, id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Goal deleted"})
	return nil
}

// goalRecommendations projects an active goal against the current month's
// plan. Goals are stored without advice when no projection is possible.
func (s *Server) goalRecommendations(ctx context.Context, user core.User, g core.SavingsGoal) []string {
	if s.advisor == nil || g.Status != core.GoalActive {
		return nil
	}
	res, err := s.advisor.SavingsPlan(ctx, user, g.TargetAmount.Decimal(), g.TargetDate.Time)
	if err != nil {
		log.FromContext(ctx).DebugContext(ctx, "No savings projection for goal", log.FieldError, err)
		return nil
	}

	var recs []string
	if res.Plan.Feasible {
		recs = append(recs, fmt.Sprintf("Set aside %s a month to reach %q in %d months.",
			res.Plan.RequiredMonthly.StringFixed(2), g.Name, res.Plan.MonthsToGoal))
	} else {
		recs = append(recs, fmt.Sprintf("Reaching %q needs %s a month, more than the %s left after expenses.",
			g.Name, res.Plan.RequiredMonthly.StringFixed(2), res.MonthlyIncome.Sub(res.MonthlyExpenses).StringFixed(2)))
	}
	for _, rec := range res.Plan.Recommendations {
		recs = append(recs, rec.Advice)
	}
	return recs
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, user core.User) error {
	notes, err := s.store.ListNotifications(r.Context(), user.ID, notificationsLimit)
	if err != nil {
		return err
	}
	out := make([]notificationJSON, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNotificationJSON(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
	return nil
}

func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.store.MarkNotificationRead(r.Context(), user.ID, id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Notification marked as read"})
	return nil
}
