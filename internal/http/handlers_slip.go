package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"moneynotes/internal/apperr"
	"moneynotes/internal/log"
	"moneynotes/internal/slip"
)

const maxSlipUpload = 10 << 20

type slipResponse struct {
	slip.Result
	Found bool `json:"found"`
}

// handleScanSlip reads the multipart "image" field and returns whatever the
// scanner could extract. A slip with nothing readable is not an error.
func (s *Server) handleScanSlip(w http.ResponseWriter, r *http.Request) {
	if s.deps.Slips == nil {
		writeError(w, r, apperr.Validation("scan slip", errors.New("slip scanning is not configured")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSlipUpload)
	if err := r.ParseMultipartForm(maxSlipUpload); err != nil {
		writeError(w, r, apperr.Validation("scan slip", fmt.Errorf("read upload: %w", err)))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.Validation("scan slip", fmt.Errorf("missing image: %w", err)))
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		writeError(w, r, apperr.Validation("scan slip", fmt.Errorf("unsupported content type %q", ct)))
		return
	}

	logger := log.FromContext(r.Context())
	result, err := s.deps.Slips.Scan(r.Context(), file, func(percent int) {
		logger.DebugContext(r.Context(), "Slip recognition progress", "percent", percent)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, slipResponse{Result: result, Found: !result.Empty()})
}
