package main

import (
	"context"
	"errors"
	"time"

	"moneynotes/internal/amqp"
	"moneynotes/internal/backend"
	"moneynotes/internal/cli"
	"moneynotes/internal/log"
	"moneynotes/internal/queue"
	"moneynotes/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting moneynotes-worker")

	cfg := cli.LoadAndValidateWorkerConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	be := cli.InitBackend(context.Background(), logger, cfg)

	online := func(ctx context.Context) bool {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return be.Backend.Ping(pingCtx) == nil
	}
	syncer := queue.NewSyncer(repo, backend.NewMirror(be.Backend), online)
	syncWorker := worker.NewSyncWorker(syncer, cfg.SyncInterval)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on periodic sync", log.FieldError, err)
			consumer = nil
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err)
		}
	})

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if consumer != nil {
		go func() {
			if err := consumer.ConsumeSyncRequests(ctx, syncWorker.HandleSyncRequest); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	go syncWorker.RunPeriodic(ctx)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
