// Package http exposes the session, budget, slip scanner and sync controls
// as a JSON API.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"moneynotes/internal/budget"
	"moneynotes/internal/cache"
	"moneynotes/internal/core"
	"moneynotes/internal/log"
	"moneynotes/internal/middleware/ratelimit"
	"moneynotes/internal/middleware/security"
	"moneynotes/internal/middleware/trace"
	"moneynotes/internal/ocr"
	"moneynotes/internal/queue"
	"moneynotes/internal/session"
	"moneynotes/internal/slip"
)

type ArchiveReader interface {
	LoadAllTime(ctx context.Context) ([]core.Transaction, error)
}

type SlipScanner interface {
	Scan(ctx context.Context, image io.Reader, progress ocr.ProgressFunc) (slip.Result, error)
}

type ArchiveExporter interface {
	Export(ctx context.Context, txns []core.Transaction) (int, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Exporter may be nil, which
// disables the export route.
type Deps struct {
	Session  *session.Session
	Archive  ArchiveReader
	Budgets  *budget.Service
	Slips    SlipScanner
	Exporter ArchiveExporter
	Backend  Pinger
}

type Options struct {
	RequestsPerMinute int
	SummaryCacheSize  int
	SummaryCacheTTL   time.Duration
	Logger            *log.Logger
}

type Server struct {
	http.Server
	deps Deps
	now  func() time.Time

	monthCache   *cache.LRUCache[MonthSummary]
	allCache     *cache.LRUCache[AllSummary]
	cacheManager *cache.Manager

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a server ready for
// ListenAndServe.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.SummaryCacheSize <= 0 {
		opts.SummaryCacheSize = 64
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		deps:         deps,
		now:          time.Now,
		monthCache:   cache.NewLRUCache[MonthSummary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		allCache:     cache.NewLRUCache[AllSummary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:     security.NewDetector(),
		started:      time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	if deps.Session != nil {
		// Replays triggered outside a request also change the ledger
		deps.Session.OnSynced(func(context.Context, queue.Result) { s.invalidate() })
	}

	s.cacheManager.Register(s.monthCache)
	s.cacheManager.Register(s.allCache)
	s.cacheManager.StartCleanup(opts.SummaryCacheTTL)

	mux := http.NewServeMux()
	s.routes(mux)

	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var h http.Handler = mux
	h = limit(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = recoverer(h)
	h = log.Middleware(opts.Logger.WithComponent(log.ComponentHTTP), trace.GetRequestID)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/delete", s.handleBulkDelete)
	mux.HandleFunc("POST /api/month/reset", s.handleResetMonth)
	mux.HandleFunc("GET /api/archive", s.handleArchive)

	mux.HandleFunc("GET /api/summary/month", s.handleMonthSummary)
	mux.HandleFunc("GET /api/summary/all", s.handleAllSummary)

	mux.HandleFunc("GET /api/budget", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budget", s.handlePutBudget)
	mux.HandleFunc("POST /api/budget/cycle", s.handleNewCycle)

	mux.HandleFunc("POST /api/slips", s.handleScanSlip)

	mux.HandleFunc("GET /api/sync", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("POST /api/export/sheets", s.handleExportSheets)
}

// invalidate drops cached summaries after any write.
func (s *Server) invalidate() {
	s.monthCache.Purge()
	s.allCache.Purge()
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{
			"kind":    "rate_limited",
			"message": "Too many requests. Please try again later.",
			"fatal":   false,
		},
	})
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
