package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"moneynotes/internal/cache"
	"moneynotes/internal/middleware/ratelimit"
	"moneynotes/internal/middleware/security"
	"moneynotes/internal/middleware/trace"
	"moneynotes/internal/session"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"started":   humanize.Time(s.started),
	})
}

// handleReady reports whether the backend answers. An unreachable backend
// still leaves the app usable through the offline queue, so it reports
// "degraded" with 200 rather than failing the probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	checks := make(map[string]any)

	if s.deps.Backend == nil {
		checks["backend"] = "not_configured"
		status = "degraded"
	} else if err := s.deps.Backend.Ping(ctx); err != nil {
		checks["backend"] = "unreachable: " + err.Error()
		status = "degraded"
	} else {
		checks["backend"] = "ok"
	}

	state, err := s.deps.Session.SyncState(ctx)
	if err != nil {
		checks["offline_queue"] = "failed: " + err.Error()
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "checks": checks})
		return
	}
	checks["offline_queue"] = state

	checks["summary_cache"] = map[string]cache.Stats{
		"month": s.monthCache.Stats(),
		"all":   s.allCache.Stats(),
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type metricsResponse struct {
	Uptime    string                    `json:"uptime"`
	Requests  trace.Metrics             `json:"requests"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
	Security  security.DetectionMetrics `json:"security"`
	Cache     map[string]cache.Stats    `json:"cache"`
	Sync      session.SyncState         `json:"sync"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Session.SyncState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, metricsResponse{
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.rateLimiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		Cache: map[string]cache.Stats{
			"month": s.monthCache.Stats(),
			"all":   s.allCache.Stats(),
		},
		Sync: state,
	})
}
