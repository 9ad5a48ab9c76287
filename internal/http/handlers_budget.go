package http

import (
	"net/http"

	"moneynotes/internal/apperr"
	"moneynotes/internal/budget"
	"moneynotes/internal/core"
)

type budgetRequest struct {
	Amount    string `json:"amount"`
	CycleDays int    `json:"cycle_days"`
}

type budgetResponse struct {
	Configured bool           `json:"configured"`
	Status     *budget.Status `json:"status,omitempty"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Budgets.Status(r.Context(), s.deps.Session.Transactions())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{Configured: st != nil, Status: st})
}

func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := core.ParseAmount(sanitizeInput(req.Amount))
	if err != nil {
		writeError(w, r, apperr.Validation("save budget", err))
		return
	}

	if _, err := s.deps.Budgets.Save(r.Context(), amount, req.CycleDays); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBudget(w, r)
}

func (s *Server) handleNewCycle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Budgets.NewCycle(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBudget(w, r)
}

func (s *Server) writeBudget(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Budgets.Status(r.Context(), s.deps.Session.Transactions())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{Configured: st != nil, Status: st})
}
