package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneynotes/internal/apperr"
	"moneynotes/internal/backend"
	"moneynotes/internal/backend/memory"
	"moneynotes/internal/budget"
	"moneynotes/internal/core"
	"moneynotes/internal/ledger"
	"moneynotes/internal/ocr"
	"moneynotes/internal/queue"
	"moneynotes/internal/session"
	"moneynotes/internal/slip"
)

type toggle struct{ online bool }

func (t *toggle) Online() bool                { return t.online }
func (t *toggle) MarkOffline(context.Context) { t.online = false }

type fakeScanner struct {
	result slip.Result
	err    error
	panics bool
	got    []byte
}

func (f *fakeScanner) Scan(_ context.Context, image io.Reader, progress ocr.ProgressFunc) (slip.Result, error) {
	if f.panics {
		panic("scanner exploded")
	}
	f.got, _ = io.ReadAll(image)
	if progress != nil {
		progress(100)
	}
	return f.result, f.err
}

type fakeExporter struct {
	exported []core.Transaction
	err      error
}

func (f *fakeExporter) Export(_ context.Context, txns []core.Transaction) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.exported = txns
	return len(txns), nil
}

type testEnv struct {
	store    *memory.Store
	status   *toggle
	ledger   *ledger.Ledger
	scanner  *fakeScanner
	exporter *fakeExporter
	server   *Server
}

func newTestEnv(t *testing.T, rpm int) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memory.New(),
		status:   &toggle{online: true},
		scanner:  &fakeScanner{},
		exporter: &fakeExporter{},
	}
	qstore := queue.NewMemoryStore()
	q := queue.New(qstore)
	env.ledger = ledger.New(env.store, q, env.status)
	syncer := queue.NewSyncer(qstore, backend.NewMirror(env.store), func(context.Context) bool { return env.status.online })
	budgets := budget.NewService(env.store, nil)
	sess := session.New(env.ledger, budgets, syncer, q)
	require.NoError(t, sess.Load(context.Background()))

	env.server = NewServer(":0", Deps{
		Session:  sess,
		Archive:  env.ledger,
		Budgets:  budgets,
		Slips:    env.scanner,
		Exporter: env.exporter,
		Backend:  env.store,
	}, Options{RequestsPerMinute: rpm})
	t.Cleanup(func() {
		_ = env.server.Shutdown(context.Background())
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) apperr.Kind {
	t.Helper()
	return decode[errorBody](t, rec).Error.Kind
}

func TestHealthAndHeaders(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestReadyReportsDegradedBackend(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])

	env.store.SetOffline(true)
	rec = env.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestCreateAndListTransactions(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodPost, "/api/transactions", session.Form{
		Type: "expense", Amount: "฿1,250.50", Category: "Food", Date: "2025-05-20", Time: "12:30", Note: "  lunch\x00 ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createResponse](t, rec)
	assert.NotEmpty(t, created.Transaction.ID)
	assert.Equal(t, "lunch", created.Transaction.Note)
	assert.True(t, created.Transaction.Amount.Equal(decimal.RequireFromString("1250.50")))
	assert.Equal(t, session.SyncState{Online: true, Pending: 0}, created.Sync)

	for i := 0; i < 11; i++ {
		rec = env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "income", Amount: "10", Category: "Salary"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[pageResponse](t, rec)
	assert.Equal(t, 12, page.Total)
	assert.Len(t, page.Transactions, session.PageSize)
	assert.Equal(t, session.PageSize, page.Limit)

	rec = env.do(t, http.MethodGet, "/api/transactions?offset=10&limit=5", nil)
	page = decode[pageResponse](t, rec)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, created.Transaction.ID, page.Transactions[1].ID)
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t, 100)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"type":`},
		{"unknown field", `{"type":"expense","amount":"10","category":"Food","extra":1}`},
		{"trailing data", `{"type":"expense","amount":"10","category":"Food"} {}`},
		{"zero amount", session.Form{Type: "expense", Amount: "0", Category: "Food"}},
		{"bad category", session.Form{Type: "income", Amount: "10", Category: "Food"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, apperr.KindValidation, body.Error.Kind)
			assert.False(t, body.Error.Blocking)
		})
	}
}

func TestOfflineWritesQueueAndSync(t *testing.T) {
	env := newTestEnv(t, 100)
	env.status.online = false

	rec := env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "expense", Amount: "42", Category: "Transport"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, session.SyncState{Online: false, Pending: 1}, decode[createResponse](t, rec).Sync)

	rec = env.do(t, http.MethodPost, "/api/month/reset", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperr.KindConnectivity, errorKind(t, rec))

	env.status.online = true
	rec = env.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[syncResponse](t, rec)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Pending)

	archive, err := env.store.Fetch(context.Background(), core.ScopeArchive)
	require.NoError(t, err)
	assert.Len(t, archive, 1)

	rec = env.do(t, http.MethodGet, "/api/sync", nil)
	assert.Equal(t, session.SyncState{Online: true, Pending: 0}, decode[session.SyncState](t, rec))
}

func TestDeleteTransactions(t *testing.T) {
	env := newTestEnv(t, 100)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "expense", Amount: "5", Category: "Food"})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[createResponse](t, rec).Transaction.ID)
	}

	rec := env.do(t, http.MethodDelete, "/api/transactions/"+ids[0], nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/transactions/delete", bulkDeleteRequest{IDs: []string{ids[1], ids[2], ids[2], " "}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[map[string]int](t, rec)["deleted"])

	rec = env.do(t, http.MethodPost, "/api/transactions/delete", bulkDeleteRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, 0, decode[pageResponse](t, rec).Total)

	archive, err := env.store.Fetch(context.Background(), core.ScopeArchive)
	require.NoError(t, err)
	assert.Empty(t, archive)
}

func TestResetMonthKeepsArchive(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "income", Amount: "100", Category: "Salary"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/month/reset", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, 0, decode[pageResponse](t, rec).Total)

	rec = env.do(t, http.MethodGet, "/api/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[pageResponse](t, rec).Total)
}

func TestArchiveUnreachable(t *testing.T) {
	env := newTestEnv(t, 100)
	env.store.SetOffline(true)

	rec := env.do(t, http.MethodGet, "/api/archive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperr.KindConnectivity, errorKind(t, rec))
	assert.False(t, env.status.online, "a connectivity failure marks the ledger offline")
}

func TestSummaryCacheInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t, 100)
	env.server.now = func() time.Time { return time.Date(2025, 5, 20, 9, 0, 0, 0, time.Local) }

	rec := env.do(t, http.MethodGet, "/api/summary/month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[MonthSummary](t, rec).Count)

	rec = env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "expense", Amount: "1234", Category: "Food", Date: "2025-05-20"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/summary/month", nil)
	summary := decode[MonthSummary](t, rec)
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, "-฿1,234.00", summary.NetLabel)
	require.Len(t, summary.Top, 1)
	assert.Equal(t, "Food", summary.Top[0].Name)
	assert.True(t, summary.Today.Total.Equal(decimal.NewFromInt(1234)))
	assert.Len(t, summary.Daily, 31)

	rec = env.do(t, http.MethodGet, "/api/summary/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[AllSummary](t, rec)
	assert.Equal(t, 1, all.Count)
	require.Len(t, all.Monthly, 1)

	stats := env.server.monthCache.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
	env.do(t, http.MethodGet, "/api/summary/month", nil)
	assert.Equal(t, uint64(1), env.server.monthCache.Stats().Hits)
}

func TestSummaryCacheInvalidatedByReconnectSync(t *testing.T) {
	env := newTestEnv(t, 100)
	env.status.online = false

	rec := env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "expense", Amount: "250", Category: "Food", Date: "2025-05-20"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/summary/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[AllSummary](t, rec).Count, "queued insert is not in the archive yet")

	// Reconnect replays outside any request
	env.status.online = true
	res, err := env.server.deps.Session.OnOnline(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Synced)

	rec = env.do(t, http.MethodGet, "/api/summary/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[AllSummary](t, rec).Count)
}

func TestBudgetLifecycle(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodGet, "/api/budget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[budgetResponse](t, rec).Configured)

	rec = env.do(t, http.MethodPost, "/api/budget/cycle", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/budget", budgetRequest{Amount: "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/budget", budgetRequest{Amount: "5,000", CycleDays: 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[budgetResponse](t, rec)
	require.True(t, resp.Configured)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 7, resp.Status.Cycle.CycleDays)
	assert.True(t, resp.Status.Cycle.Amount.Equal(decimal.NewFromInt(5000)))
	first := resp.Status.Cycle.ID

	rec = env.do(t, http.MethodPost, "/api/budget/cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[budgetResponse](t, rec)
	assert.NotEqual(t, first, resp.Status.Cycle.ID)
	assert.Equal(t, 7, resp.Status.Cycle.CycleDays)
}

func multipartImage(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="slip.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, field, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartImage(t, field, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/slips", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestScanSlip(t *testing.T) {
	env := newTestEnv(t, 100)
	amount := decimal.RequireFromString("350.00")
	env.scanner.result = slip.Result{Amount: &amount, Memo: "7-Eleven", Category: "Food"}

	rec := env.upload(t, "image", "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[slipResponse](t, rec)
	assert.True(t, resp.Found)
	assert.Equal(t, "Food", resp.Category)
	assert.Equal(t, []byte("png-bytes"), env.scanner.got)

	rec = env.upload(t, "file", "image/png", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.upload(t, "image", "text/plain", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.scanner.result = slip.Result{}
	rec = env.upload(t, "image", "image/jpeg", []byte("blank"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[slipResponse](t, rec).Found)

	env.scanner.err = apperr.Recognition("scan slip", errors.New("tesseract failed"))
	rec = env.upload(t, "image", "image/jpeg", []byte("blurry"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperr.KindRecognition, errorKind(t, rec))
}

func TestPanicBecomesBlockingNotice(t *testing.T) {
	env := newTestEnv(t, 100)
	env.scanner.panics = true

	rec := env.upload(t, "image", "image/png", []byte("x"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, apperr.KindInternal, body.Error.Kind)
	assert.True(t, body.Error.Blocking)
}

func TestExportSheets(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodPost, "/api/transactions", session.Form{Type: "expense", Amount: "20", Category: "Food"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/export/sheets", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[map[string]int](t, rec)["exported"])
	assert.Len(t, env.exporter.exported, 1)

	env.exporter.err = apperr.Connectivity("export sheets", errors.New("quota"))
	rec = env.do(t, http.MethodPost, "/api/export/sheets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.server.deps.Exporter = nil
	rec = env.do(t, http.MethodPost, "/api/export/sheets", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/transactions", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/transactions", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		rec = env.do(t, http.MethodGet, "/api/transactions", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[metricsResponse](t, rec)
	assert.Equal(t, int64(1), m.RateLimit.Rejected)
	assert.Positive(t, m.Requests.TotalRequests)
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodGet, "/api/transactions?q=<script>", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, int64(1), decode[metricsResponse](t, rec).Security.BlockedRequests)
}
