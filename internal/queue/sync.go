package queue

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"moneynotes/internal/core"
	"moneynotes/internal/log"
)

// Replayer applies mutations to the backend, monthly table first and then
// the archive.
type Replayer interface {
	Add(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Remove(ctx context.Context, id string) error
	RemoveMany(ctx context.Context, ids []string) error
}

// OnlineFunc reports whether the backend is currently reachable.
type OnlineFunc func(ctx context.Context) bool

// Result counts the outcome of one replay pass.
type Result struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type Syncer struct {
	store  Store
	target Replayer
	online OnlineFunc
	group  singleflight.Group
}

// NewSyncer creates a syncer. A nil online func treats the backend as
// always reachable.
func NewSyncer(store Store, target Replayer, online OnlineFunc) *Syncer {
	return &Syncer{store: store, target: target, online: online}
}

// Sync replays every queued entry in FIFO order. A failed entry stays queued
// and replay moves on to the next one. Concurrent calls share one pass, which
// runs detached from any single caller's cancellation.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	passCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do("sync", func() (any, error) {
		return s.run(passCtx)
	})
	if shared {
		slog.DebugContext(ctx, "Joined in-flight sync pass")
	}
	res, _ := v.(Result)
	return res, err
}

func (s *Syncer) run(ctx context.Context) (Result, error) {
	var res Result

	if s.online != nil && !s.online(ctx) {
		slog.DebugContext(ctx, "Skipping sync while offline")
		return res, nil
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list queue: %w", err)
	}
	if len(entries) == 0 {
		return res, nil
	}

	slog.InfoContext(ctx, "Replaying offline queue", log.FieldPending, len(entries))

	for _, e := range entries {
		// An entry held by another pass blocks everything behind it, so
		// later mutations never overtake it.
		ok, err := s.store.Claim(ctx, e.ID)
		if err != nil {
			return res, fmt.Errorf("claim queue entry %s: %w", e.ID, err)
		}
		if !ok {
			slog.InfoContext(ctx, "Offline entry owned by another sync pass, stopping",
				log.FieldQueueEntry, e.ID,
				log.FieldSynced, res.Synced,
				log.FieldFailed, res.Failed)
			return res, nil
		}

		if err := s.replay(ctx, e.Action); err != nil {
			res.Failed++
			slog.WarnContext(ctx, "Offline entry failed to replay",
				log.FieldQueueEntry, e.ID,
				log.FieldAction, kindOf(e.Action),
				log.FieldError, err)
			if err := s.store.Release(ctx, e.ID); err != nil {
				slog.ErrorContext(ctx, "Failed entry could not be released",
					log.FieldQueueEntry, e.ID,
					log.FieldError, err)
			}
			continue
		}

		if err := s.store.Remove(ctx, e.ID); err != nil {
			slog.ErrorContext(ctx, "Replayed entry could not be removed from queue",
				log.FieldQueueEntry, e.ID,
				log.FieldError, err)
		}
		res.Synced++
	}

	slog.InfoContext(ctx, "Offline queue replayed",
		log.FieldSynced, res.Synced,
		log.FieldFailed, res.Failed)

	return res, nil
}

func (s *Syncer) replay(ctx context.Context, a Action) error {
	switch a := a.(type) {
	case Add:
		_, err := s.target.Add(ctx, a.Transaction)
		return err
	case Delete:
		return s.target.Remove(ctx, a.ID)
	case DeleteMultiple:
		return s.target.RemoveMany(ctx, a.IDs)
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

func kindOf(a Action) Kind {
	if a == nil {
		return ""
	}
	return a.Kind()
}
