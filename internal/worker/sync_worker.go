// Package worker replays the offline queue outside the API process, on
// request over AMQP and on a fixed interval.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moneynotes/internal/amqp"
	"moneynotes/internal/log"
	"moneynotes/internal/queue"
)

type Syncer interface {
	Sync(ctx context.Context) (queue.Result, error)
}

type SyncWorker struct {
	syncer   Syncer
	interval time.Duration
}

func NewSyncWorker(syncer Syncer, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		syncer:   syncer,
		interval: interval,
	}
}

// HandleSyncRequest runs one sync pass for an AMQP request. Items that fail
// to replay stay queued and are not an error here; only a pass that could
// not run at all is returned, which requeues the message.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	slog.InfoContext(ctx, "Processing sync request",
		log.FieldReason, msg.Reason,
		"queued", msg.Queued,
		"requested_at", msg.Timestamp)

	if _, err := w.sync(ctx, "request:"+msg.Reason); err != nil {
		return fmt.Errorf("sync offline queue: %w", err)
	}
	return nil
}

// StartupSyncCheck replays whatever was queued while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	res, err := w.sync(ctx, "startup")
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	if res.Synced == 0 && res.Failed == 0 {
		slog.InfoContext(ctx, "No queued mutations found on startup")
	}
	return nil
}

// RunPeriodic syncs every interval until ctx is done. It is the fallback
// for lost or never published sync requests.
func (w *SyncWorker) RunPeriodic(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Periodic sync started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Periodic sync stopped")
			return
		case <-ticker.C:
			if _, err := w.sync(ctx, "periodic"); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err)
			}
		}
	}
}

func (w *SyncWorker) sync(ctx context.Context, trigger string) (queue.Result, error) {
	start := time.Now()
	res, err := w.syncer.Sync(ctx)
	if err != nil {
		return res, err
	}

	if res.Synced > 0 || res.Failed > 0 {
		slog.InfoContext(ctx, "Sync pass completed",
			"trigger", trigger,
			log.FieldSynced, res.Synced,
			log.FieldFailed, res.Failed,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return res, nil
}
