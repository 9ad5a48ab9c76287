package http

import (
	"errors"
	"net/http"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
	"moneynotes/internal/session"
)

const maxBulkDelete = 500

type pageResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Total        int                `json:"total"`
	Offset       int                `json:"offset"`
	Limit        int                `json:"limit"`
}

type createResponse struct {
	Transaction core.Transaction  `json:"transaction"`
	Sync        session.SyncState `json:"sync"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	offset, limit := parseOffsetLimit(r)
	if limit == 0 {
		limit = session.PageSize
	}

	txns, total := s.deps.Session.Page(offset, limit)
	writeJSON(w, http.StatusOK, pageResponse{
		Transactions: txns,
		Total:        total,
		Offset:       offset,
		Limit:        limit,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var form session.Form
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	form.Type = sanitizeInput(form.Type)
	form.Amount = sanitizeInput(form.Amount)
	form.Category = sanitizeInput(form.Category)
	form.Date = sanitizeInput(form.Date)
	form.Time = sanitizeInput(form.Time)
	form.Note = sanitizeInput(form.Note)

	tx, err := s.deps.Session.Submit(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate()

	state, err := s.deps.Session.SyncState(r.Context())
	if err != nil {
		// The transaction is recorded; only the indicator is missing.
		state = session.SyncState{Online: false}
	}
	writeJSON(w, http.StatusCreated, createResponse{Transaction: tx, Sync: state})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		writeError(w, r, apperr.Validation("delete transaction", core.ErrMissingID))
		return
	}

	if err := s.deps.Session.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ids := make([]string, 0, len(req.IDs))
	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		id = sanitizeInput(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	switch {
	case len(ids) == 0:
		writeError(w, r, apperr.Validation("delete transactions", errors.New("no transaction ids given")))
		return
	case len(ids) > maxBulkDelete:
		writeError(w, r, apperr.Validation("delete transactions", errors.New("too many transaction ids")))
		return
	}

	if err := s.deps.Session.Delete(r.Context(), ids...); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(ids)})
}

func (s *Server) handleResetMonth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.ResetMonth(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// handleArchive pages through the all-time table, newest created first.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	txns, err := s.deps.Archive.LoadAllTime(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	offset, limit := parseOffsetLimit(r)
	if limit == 0 {
		limit = session.PageSize
	}
	total := len(txns)
	page := []core.Transaction{}
	if offset < total {
		page = txns[offset:min(offset+limit, total)]
	}

	writeJSON(w, http.StatusOK, pageResponse{
		Transactions: page,
		Total:        total,
		Offset:       offset,
		Limit:        limit,
	})
}
