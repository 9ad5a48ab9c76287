package session

import (
	"context"
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
	"moneynotes/internal/queue"
)

type toggle struct{ online bool }

func (t *toggle) Online() bool                { return t.online }
func (t *toggle) MarkOffline(context.Context) { t.online = false }

type harness struct {
	store   *memory.Store
	status  *toggle
	qstore  *queue.MemoryStore
	budgets *budget.Service
	session *Session
}

func newHarness() *harness {
	h := &harness{
		store:  memory.New(),
		status: &toggle{online: true},
		qstore: queue.NewMemoryStore(),
	}
	q := queue.New(h.qstore)
	l := ledger.New(h.store, q, h.status)
	syncer := queue.NewSyncer(h.qstore, backend.NewMirror(h.store), func(context.Context) bool { return h.status.online })
	h.budgets = budget.NewService(h.store, nil)
	h.session = New(l, h.budgets, syncer, q)
	h.session.now = func() time.Time { return time.Date(2025, 5, 20, 18, 45, 0, 0, time.UTC) }
	return h
}

func TestSubmitDefaultsAndPrepends(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	first, err := h.session.Submit(ctx, Form{Type: "expense", Amount: "฿1,250.00", Category: "Food"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "2025-05-20", first.Date.String())
	require.NotNil(t, first.Time)
	assert.Equal(t, "18:45", first.Time.String())
	assert.Equal(t, "1250", first.Amount.String())

	second, err := h.session.Submit(ctx, Form{Type: "income", Amount: "30000", Category: "Salary", Date: "2025-05-01", Time: "09:00"})
	require.NoError(t, err)

	txns := h.session.Transactions()
	require.Len(t, txns, 2)
	assert.Equal(t, second.ID, txns[0].ID)
	assert.Equal(t, first.ID, txns[1].ID)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	tests := []struct {
		name string
		form Form
	}{
		{"zero amount", Form{Type: "expense", Amount: "0", Category: "Food"}},
		{"bad amount", Form{Type: "expense", Amount: "abc", Category: "Food"}},
		{"missing category", Form{Type: "expense", Amount: "10"}},
		{"bad type", Form{Type: "transfer", Amount: "10", Category: "Food"}},
		{"category of other type", Form{Type: "income", Amount: "10", Category: "Food"}},
		{"bad date", Form{Type: "expense", Amount: "10", Category: "Food", Date: "2025-02-30"}},
		{"bad time", Form{Type: "expense", Amount: "10", Category: "Food", Time: "25:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.session.Submit(ctx, tt.form)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "err = %v", err)
		})
	}
	assert.Empty(t, h.session.Transactions())
}

func TestDeleteFiltersList(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	var ids []string
	for _, amount := range []string{"10", "20", "30"} {
		tx, err := h.session.Submit(ctx, Form{Type: "expense", Amount: amount, Category: "Transport"})
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	require.NoError(t, h.session.Delete(ctx, ids[0]))
	require.NoError(t, h.session.Delete(ctx, ids[1], ids[2]))
	assert.Empty(t, h.session.Transactions())

	require.NoError(t, h.session.Reload(ctx))
	assert.Empty(t, h.session.Transactions())
}

func TestOfflineThenOnlineSyncsAndReloads(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.status.online = false

	tx, err := h.session.Submit(ctx, Form{Type: "expense", Amount: "99", Category: "Shopping"})
	require.NoError(t, err)
	assert.Len(t, h.session.Transactions(), 1, "optimistic insert while offline")

	view, err := h.session.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, view.Online)
	assert.Equal(t, 1, view.Pending)

	state, err := h.session.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncState{Online: false, Pending: 1}, state)

	h.status.online = true
	res, err := h.session.OnOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Result{Synced: 1}, res)

	txns := h.session.Transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, tx.ID, txns[0].ID)
	assert.False(t, txns[0].CreatedAt.IsZero(), "list reloaded from backend")
}

func TestSyncedHookFiresOnlyWhenEntriesSynced(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	var got []queue.Result
	h.session.OnSynced(func(_ context.Context, res queue.Result) {
		got = append(got, res)
	})

	_, err := h.session.OnOnline(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "nothing queued, nothing synced")

	h.status.online = false
	_, err = h.session.Submit(ctx, Form{Type: "expense", Amount: "40", Category: "Food"})
	require.NoError(t, err)

	h.status.online = true
	_, err = h.session.OnOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, []queue.Result{{Synced: 1}}, got)
}

func TestLoadReplaysPendingQueue(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.status.online = false
	_, err := h.session.Submit(ctx, Form{Type: "expense", Amount: "5", Category: "Food"})
	require.NoError(t, err)

	h.status.online = true
	fresh := New(ledger.New(h.store, queue.New(h.qstore), h.status), h.budgets,
		queue.NewSyncer(h.qstore, backend.NewMirror(h.store), nil), queue.New(h.qstore))
	require.NoError(t, fresh.Load(ctx))

	assert.Len(t, fresh.Transactions(), 1)
	n, _ := h.qstore.Len(ctx)
	assert.Zero(t, n)
}

func TestLoadOfflineKeepsCachedList(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.session.Submit(ctx, Form{Type: "expense", Amount: "5", Category: "Food"})
	require.NoError(t, err)

	h.store.SetOffline(true)
	require.NoError(t, h.session.Load(ctx))
	assert.Len(t, h.session.Transactions(), 1)
}

func TestResetMonth(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.session.Submit(ctx, Form{Type: "expense", Amount: "5", Category: "Food"})
	require.NoError(t, err)

	require.NoError(t, h.session.ResetMonth(ctx))
	assert.Empty(t, h.session.Transactions())

	h.status.online = false
	err = h.session.ResetMonth(ctx)
	assert.Equal(t, apperr.KindConnectivity, apperr.KindOf(err))
}

func TestSnapshotWithBudget(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.session.now = time.Now

	_, err := h.budgets.Save(ctx, decimal.NewFromInt(1000), 5)
	require.NoError(t, err)

	today := core.DateOf(time.Now()).String()
	_, err = h.session.Submit(ctx, Form{Type: "expense", Amount: "100", Category: "Food", Date: today, Time: "23:59"})
	require.NoError(t, err)
	_, err = h.session.Submit(ctx, Form{Type: "income", Amount: "500", Category: "Bonus", Date: today})
	require.NoError(t, err)

	view, err := h.session.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.Budget)
	assert.Equal(t, "100", view.Totals.Expense.String())
	assert.Equal(t, "500", view.Totals.Income.String())
	assert.True(t, view.Online)
	assert.Len(t, view.Transactions, 2)
}

func TestPage(t *testing.T) {
	h := newHarness()
	var txns []core.Transaction
	for i := 0; i < 23; i++ {
		txns = append(txns, core.Transaction{ID: string(rune('a' + i))})
	}
	h.session.replace(txns)

	page, total := h.session.Page(0, 0)
	assert.Equal(t, 23, total)
	assert.Len(t, page, PageSize)
	assert.Equal(t, "a", page[0].ID)

	page, _ = h.session.Page(20, PageSize)
	assert.Len(t, page, 3)

	page, _ = h.session.Page(40, PageSize)
	assert.Empty(t, page)
}
