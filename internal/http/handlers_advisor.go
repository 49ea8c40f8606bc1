package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"famfin/internal/core"
)

const maxPredictMonths = 24

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, _ core.User) error {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.Transactions == nil {
		return fmt.Errorf("%w: transactions data is required", errMalformed)
	}
	txs, err := req.expenses()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": toPatternsJSON(s.advisor.Analyze(txs))})
	return nil
}

func (s *Server) handleBudgetRecommendations(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.MonthlyIncome == nil {
		return fmt.Errorf("%w: monthly income is required", errMalformed)
	}
	alloc, err := s.advisor.BudgetRecommendations(r.Context(), user, *req.MonthlyIncome)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": toAllocationJSON(alloc)})
	return nil
}

func (s *Server) handleSavingsPlan(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req savingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	goal, err := req.goalAmount()
	if err != nil {
		return err
	}
	target, err := dateParam(req.TargetDate, "targetDate")
	if err != nil {
		return err
	}
	res, err := s.advisor.SavingsPlan(r.Context(), user, goal, target.Time)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": toSavingsPlanJSON(res)})
	return nil
}

// handleOptimizeFamily splits a budget across the posted members, or across
// the caller's stored family when none are posted.
func (s *Server) handleOptimizeFamily(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req optimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.TotalBudget == nil {
		return fmt.Errorf("%w: total budget is required", errMalformed)
	}
	alloc, err := s.advisor.OptimizeFamily(r.Context(), user, req.members(), *req.TotalBudget)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"optimizedBudget": toFamilyAllocationJSON(alloc)})
	return nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		return fmt.Errorf("%w: start date and end date are required", errMalformed)
	}
	from, err := dateParam(req.StartDate, "startDate")
	if err != nil {
		return err
	}
	to, err := dateParam(req.EndDate, "endDate")
	if err != nil {
		return err
	}
	rep, err := s.advisor.Report(r.Context(), user, from, to)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": toReportJSON(rep)})
	return nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req predictRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			return err
		}
	}
	if req.MonthsAhead < 0 || req.MonthsAhead > maxPredictMonths {
		return invalid(fmt.Errorf("monthsAhead must be between 0 and %d", maxPredictMonths))
	}
	trends, err := s.advisor.Predict(r.Context(), user, req.MonthsAhead)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": toTrendsJSON(trends)})
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	message := sanitizeInput(req.Message)
	if message == "" {
		return fmt.Errorf("%w: message is required", errMalformed)
	}
	if len(message) > 1000 {
		return invalid(errors.New("message too long (max 1000 characters)"))
	}
	answer, err := s.advisor.Chat(r.Context(), user, message)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"response":  answer,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
	return nil
}
