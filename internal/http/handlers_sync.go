package http

import (
	"errors"
	"net/http"

	"moneynotes/internal/apperr"
	"moneynotes/internal/log"
	"moneynotes/internal/queue"
	"moneynotes/internal/session"
)

type syncResponse struct {
	queue.Result
	session.SyncState
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Session.SyncState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSync replays the offline queue on demand.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Session.OnOnline(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	state, err := s.deps.Session.SyncState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Manual sync completed",
		log.FieldSynced, res.Synced,
		log.FieldFailed, res.Failed,
		log.FieldPending, state.Pending)

	writeJSON(w, http.StatusOK, syncResponse{Result: res, SyncState: state})
}

// handleExportSheets mirrors the whole archive into the configured
// spreadsheet.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		writeError(w, r, apperr.Validation("export sheets", errors.New("sheets export is not configured")))
		return
	}

	txns, err := s.deps.Archive.LoadAllTime(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.deps.Exporter.Export(r.Context(), txns)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"exported": n})
}
