package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
)

type call struct {
	kind Kind
	ids  []string
}

// fakeReplayer records calls and fails the calls whose 1-based index is in
// failOn.
type fakeReplayer struct {
	mu     sync.Mutex
	calls  []call
	failOn map[int]bool
	block  chan struct{}
}

func (f *fakeReplayer) record(c call) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failOn[len(f.calls)] {
		return errors.New("backend rejected")
	}
	return nil
}

func (f *fakeReplayer) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return tx, f.record(call{kind: KindAdd, ids: []string{tx.ID}})
}

func (f *fakeReplayer) Remove(ctx context.Context, id string) error {
	return f.record(call{kind: KindDelete, ids: []string{id}})
}

func (f *fakeReplayer) RemoveMany(ctx context.Context, ids []string) error {
	return f.record(call{kind: KindDeleteMultiple, ids: ids})
}

func txn(id string) core.Transaction {
	return core.Transaction{
		ID:       id,
		Type:     core.Expense,
		Amount:   decimal.NewFromInt(25),
		Category: "Food",
		Date:     core.NewDate(2025, 1, 2),
	}
}

func TestSyncNoHeadOfLineBlocking(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := New(store)

	_, err := q.Enqueue(ctx, Add{Transaction: txn("A")})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Delete{ID: "A"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Add{Transaction: txn("B")})
	require.NoError(t, err)

	target := &fakeReplayer{failOn: map[int]bool{2: true}}
	res, err := NewSyncer(store, target, nil).Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, Result{Synced: 2, Failed: 1}, res)

	left, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, Delete{ID: "A"}, left[0].Action)

	require.Len(t, target.calls, 3)
	assert.Equal(t, KindAdd, target.calls[0].kind)
	assert.Equal(t, KindDelete, target.calls[1].kind)
	assert.Equal(t, []string{"B"}, target.calls[2].ids)
}

func TestSyncRetriesFailedEntryNextPass(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := New(store)
	_, _ = q.Enqueue(ctx, DeleteMultiple{IDs: []string{"x", "y"}})

	s := NewSyncer(store, &fakeReplayer{failOn: map[int]bool{1: true}}, nil)
	res, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	s = NewSyncer(store, &fakeReplayer{}, nil)
	res, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1}, res)

	n, _ := q.Len(ctx)
	assert.Zero(t, n)
}

func TestSyncOfflineIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := New(store)
	_, _ = q.Enqueue(ctx, Delete{ID: "A"})

	target := &fakeReplayer{}
	res, err := NewSyncer(store, target, func(context.Context) bool { return false }).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, target.calls)

	n, _ := q.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestSyncCoalescesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := New(store)
	_, _ = q.Enqueue(ctx, Add{Transaction: txn("A")})

	target := &fakeReplayer{block: make(chan struct{})}
	s := NewSyncer(store, target, nil)

	var started sync.WaitGroup
	var done sync.WaitGroup
	var synced atomic.Int64
	for i := 0; i < 3; i++ {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			res, err := s.Sync(ctx)
			assert.NoError(t, err)
			synced.Add(int64(res.Synced))
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(target.block)
	done.Wait()

	assert.Len(t, target.calls, 1, "entry must be replayed exactly once")
	assert.GreaterOrEqual(t, synced.Load(), int64(1))
}

func TestSyncSurvivesCallerCancellation(t *testing.T) {
	store := NewMemoryStore()
	q := New(store)
	_, _ = q.Enqueue(context.Background(), Add{Transaction: txn("A")})
	_, _ = q.Enqueue(context.Background(), Delete{ID: "B"})

	target := &fakeReplayer{block: make(chan struct{})}
	s := NewSyncer(store, target, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.Sync(ctx)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan Result, 1)
	go func() {
		res, err := s.Sync(context.Background())
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(20 * time.Millisecond)

	// The caller that started the pass goes away mid-replay
	cancel()
	close(target.block)

	assert.NoError(t, <-first)
	assert.Equal(t, Result{Synced: 2}, <-second)
	assert.Len(t, target.calls, 2)

	n, _ := q.Len(context.Background())
	assert.Zero(t, n)
}

func TestSyncStopsAtEntryClaimedElsewhere(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := New(store)
	held, _ := q.Enqueue(ctx, Add{Transaction: txn("A")})
	_, _ = q.Enqueue(ctx, Delete{ID: "A"})

	ok, err := store.Claim(ctx, held.ID)
	require.NoError(t, err)
	require.True(t, ok)

	target := &fakeReplayer{}
	res, err := NewSyncer(store, target, nil).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, target.calls, "delete must not overtake the held add")

	require.NoError(t, store.Release(ctx, held.ID))
	res, err = NewSyncer(store, target, nil).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 2}, res)
	require.Len(t, target.calls, 2)
	assert.Equal(t, KindAdd, target.calls[0].kind)
}

func TestFailedEntryIsReleased(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e, _ := New(store).Enqueue(ctx, Delete{ID: "A"})

	_, err := NewSyncer(store, &fakeReplayer{failOn: map[int]bool{1: true}}, nil).Sync(ctx)
	require.NoError(t, err)

	ok, err := store.Claim(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Append(context.Context, Entry) error {
	return errors.New("disk full")
}

func TestEnqueuePersistFailure(t *testing.T) {
	q := New(&failingStore{})
	_, err := q.Enqueue(context.Background(), Delete{ID: "A"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestEnqueueHook(t *testing.T) {
	ctx := context.Background()
	q := New(NewMemoryStore())
	var got []int
	q.OnEnqueue(func(_ context.Context, e Entry, pending int) {
		got = append(got, pending)
	})
	_, _ = q.Enqueue(ctx, Delete{ID: "A"})
	_, _ = q.Enqueue(ctx, Delete{ID: "B"})
	assert.Equal(t, []int{1, 2}, got)
}

func TestActionCodec(t *testing.T) {
	clock := core.Clock{Hour: 9, Minute: 5}
	tx := txn("A")
	tx.Time = &clock
	tx.Note = "coffee"

	tests := []struct {
		name   string
		action Action
	}{
		{"add", Add{Transaction: tx}},
		{"delete", Delete{ID: "A"}},
		{"delete multiple", DeleteMultiple{IDs: []string{"A", "B"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, payload, err := EncodeAction(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.action.Kind(), kind)

			back, err := DecodeAction(kind, payload)
			require.NoError(t, err)
			if add, ok := back.(Add); ok {
				orig := tt.action.(Add).Transaction
				assert.Equal(t, orig.ID, add.Transaction.ID)
				assert.True(t, orig.Amount.Equal(add.Transaction.Amount))
				assert.Equal(t, orig.Date.String(), add.Transaction.Date.String())
				assert.Equal(t, "09:05", add.Transaction.Time.String())
				return
			}
			assert.Equal(t, tt.action, back)
		})
	}

	_, err := DecodeAction("rename", []byte(`{}`))
	assert.Error(t, err)
}
