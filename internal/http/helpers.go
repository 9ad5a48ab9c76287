package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"moneynotes/internal/apperr"
	"moneynotes/internal/log"
)

const maxJSONBody = 64 << 10

var errBadJSON = errors.New("malformed request body")

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error apperr.Notice `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// The status line is already written; an encode error cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as a notice with the status its kind maps to.
// Internal errors are logged with the request scoped logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	notice := apperr.Classify(err)
	status := apperr.HTTPStatus(err)

	logger := log.FromContext(r.Context())
	if notice.Blocking {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, "path", r.URL.Path)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldError, err, "kind", notice.Kind, "path", r.URL.Path)
	}

	writeJSON(w, status, errorBody{Error: notice})
}

// decodeJSON reads a bounded JSON body into v. Unknown fields and trailing
// data are rejected as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return apperr.Validation("decode request", fmt.Errorf("%w: %v", errBadJSON, err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("decode request", fmt.Errorf("%w: trailing data", errBadJSON))
	}
	return nil
}

// parseOffsetLimit reads the offset and limit query parameters. Missing or
// malformed values fall back to 0, which callers treat as defaults.
func parseOffsetLimit(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("offset"))); err == nil && v > 0 {
		offset = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil && v > 0 {
		limit = min(v, 100)
	}
	return offset, limit
}

// sanitizeInput trims whitespace and strips control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// recoverer turns a handler panic into the blocking fallback notice.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			writeError(w, r, apperr.Internal("panic", fmt.Errorf("%v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}
