package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"moneynotes/internal/apperr"
	"moneynotes/internal/log"
)

// Entry is one queued mutation.
type Entry struct {
	ID         string    `json:"id"`
	Action     Action    `json:"-"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Store persists entries in FIFO order.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns entries oldest first.
	List(ctx context.Context) ([]Entry, error)
	Remove(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	// Claim marks the entry as being replayed. It reports false when
	// another sync pass, possibly in another process, holds a live claim.
	Claim(ctx context.Context, id string) (bool, error)
	// Release hands a claimed entry back so a later pass can retry it.
	Release(ctx context.Context, id string) error
}

// EnqueueHook runs after an entry has been persisted.
type EnqueueHook func(ctx context.Context, e Entry, pending int)

type Queue struct {
	store Store
	now   func() time.Time

	mu    sync.RWMutex
	hooks []EnqueueHook
}

func New(store Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

func (q *Queue) OnEnqueue(h EnqueueHook) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hooks = append(q.hooks, h)
}

// Enqueue appends a at the tail. A persistence failure is logged and
// returned as an internal error.
func (q *Queue) Enqueue(ctx context.Context, a Action) (Entry, error) {
	e := Entry{
		ID:         uuid.NewString(),
		Action:     a,
		EnqueuedAt: q.now(),
	}

	if err := q.store.Append(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to persist offline entry",
			log.FieldAction, a.Kind(),
			log.FieldError, err)
		return Entry{}, apperr.Internal("enqueue", fmt.Errorf("persist %s: %w", a.Kind(), err))
	}

	pending, err := q.store.Len(ctx)
	if err != nil {
		pending = -1
	}

	slog.InfoContext(ctx, "Queued offline mutation",
		log.FieldQueueEntry, e.ID,
		log.FieldAction, a.Kind(),
		log.FieldPending, pending)

	q.mu.RLock()
	hooks := append([]EnqueueHook(nil), q.hooks...)
	q.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, e, pending)
	}

	return e, nil
}

// Pending returns the queued entries oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	entries, err := q.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return entries, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.store.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
