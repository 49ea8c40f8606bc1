package http

import (
	"fmt"
	"net/http"
	"strconv"

	"famfin/internal/core"
	"famfin/internal/log"
)

// handleListTransactions lists the caller's transactions, or the whole
// family's with ?scope=family.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		return err
	}
	var txs []core.Transaction
	switch r.URL.Query().Get("scope") {
	case "", "mine":
		txs, err = s.txs.List(r.Context(), user, month)
	case "family":
		txs, err = s.txs.ListFamily(r.Context(), user, month)
	default:
		return fmt.Errorf("%w: scope must be mine or family", errMalformed)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTransactionsJSON(txs))
	return nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, user core.User) error {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	now := s.now()
	t := core.Transaction{Date: core.NewDate(now.Year(), int(now.Month()), now.Day())}
	if err := req.apply(&t); err != nil {
		return err
	}

	created, err := s.txs.Create(r.Context(), user, t)
	if err != nil {
		return err
	}
	s.invalidateTotals(user)
	s.logTransaction(r, log.OpCreate, user, created)
	writeJSON(w, http.StatusCreated, toTransactionJSON(created))
	return nil
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	t, err := s.txs.Get(r.Context(), user, id)
	if err != nil {
		return err
	}
	if err := req.apply(&t); err != nil {
		return err
	}
	updated, err := s.txs.Update(r.Context(), user, t)
	if err != nil {
		return err
	}
	s.invalidateTotals(user)
	s.logTransaction(r, log.OpUpdate, user, updated)
	writeJSON(w, http.StatusOK, toTransactionJSON(updated))
	return nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.txs.Delete(r.Context(), user, id); err != nil {
		return err
	}
	s.invalidateTotals(user)
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogTransaction(r.Context(), log.OpDelete, user.ID, id, "", 0, "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
	return nil
}

// handleDashboard reports the caller's own totals, all time or for ?month=.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		return err
	}
	totals, err := s.cachedTotals(r, "dashboard:"+strconv.FormatInt(user.ID, 10)+":"+month, user.ID, nil, month)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, dashboardJSON{
		Month:    month,
		Income:   totals.Income,
		Expenses: totals.Expenses,
		Balance:  totals.Balance(),
	})
	return nil
}

// handleFamilyDashboard reports the family's totals. Callers without a family
// see their own figures.
func (s *Server) handleFamilyDashboard(w http.ResponseWriter, r *http.Request, user core.User) error {
	month, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		return err
	}
	key := "dashboard:" + strconv.FormatInt(user.ID, 10) + ":" + month
	if user.FamilyID != nil {
		key = "family:" + strconv.FormatInt(*user.FamilyID, 10) + ":" + month
	}
	totals, err := s.cachedTotals(r, key, user.ID, user.FamilyID, month)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, familyDashboardJSON{
		Month:          month,
		FamilyID:       user.FamilyID,
		FamilyIncome:   totals.Income,
		FamilyExpenses: totals.Expenses,
		FamilyBalance:  totals.Balance(),
	})
	return nil
}

func (s *Server) cachedTotals(r *http.Request, key string, userID int64, familyID *int64, month string) (core.Totals, error) {
	if s.totals != nil {
		if t, ok := s.totals.Get(key); ok {
			return t, nil
		}
	}
	t, err := s.store.Totals(r.Context(), userID, familyID, month)
	if err != nil {
		return core.Totals{}, fmt.Errorf("load totals: %w", err)
	}
	if s.totals != nil {
		s.totals.Set(key, t)
	}
	return t, nil
}

// invalidateTotals drops cached dashboards the user's writes can affect.
func (s *Server) invalidateTotals(user core.User) {
	if s.totals == nil {
		return
	}
	s.totals.DeletePrefix("dashboard:" + strconv.FormatInt(user.ID, 10) + ":")
	if user.FamilyID != nil {
		s.totals.DeletePrefix("family:" + strconv.FormatInt(*user.FamilyID, 10) + ":")
	}
}

func (s *Server) logTransaction(r *http.Request, op string, user core.User, t core.Transaction) {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogTransaction(r.Context(), op, user.ID, t.ID, string(t.Type), t.Amount.Cents, t.Category)
}
