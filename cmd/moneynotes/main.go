package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneynotes/internal/amqp"
	"moneynotes/internal/backend"
	"moneynotes/internal/budget"
	"moneynotes/internal/cli"
	"moneynotes/internal/connectivity"
	apphttp "moneynotes/internal/http"
	"moneynotes/internal/ledger"
	"moneynotes/internal/log"
	"moneynotes/internal/ocr"
	"moneynotes/internal/queue"
	"moneynotes/internal/session"
	"moneynotes/internal/sheets/google"
	"moneynotes/internal/slip"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx := context.Background()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	be := cli.InitBackend(startCtx, logger, cfg)

	monitor := connectivity.NewMonitor(be.Backend, connectivity.MonitorConfig{
		ProbeInterval: cfg.ProbeInterval,
	})

	q := queue.New(repo)

	// Sync requests are best effort; the worker also syncs on an interval.
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, sync requests disabled", log.FieldError, err)
			publisher = nil
		}
	}
	publish := func(ctx context.Context, reason string, pending int) {
		if publisher == nil {
			return
		}
		msg := amqp.NewSyncRequestMessage(reason, pending)
		if err := publisher.PublishSyncRequest(context.WithoutCancel(ctx), msg); err != nil {
			logger.WarnContext(ctx, "Failed to publish sync request", log.FieldReason, reason, log.FieldError, err)
		}
	}
	q.OnEnqueue(func(ctx context.Context, e queue.Entry, pending int) {
		publish(ctx, amqp.ReasonEnqueued, pending)
	})

	syncer := queue.NewSyncer(repo, backend.NewMirror(be.Backend), monitor.IsOnline)
	l := ledger.New(be.Backend, q, monitor)
	budgets := budget.NewService(be.Backend, repo)
	sess := session.New(l, budgets, syncer, q)

	monitor.OnOnline(func(ctx context.Context) {
		res, err := sess.OnOnline(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Sync on reconnect failed", log.FieldError, err)
			return
		}
		if res.Failed > 0 {
			publish(ctx, amqp.ReasonOnline, res.Failed)
		}
	})
	monitor.OnOffline(func(ctx context.Context) {
		logger.WarnContext(ctx, "Backend unreachable, writes will be queued")
	})

	if err := sess.Load(startCtx); err != nil {
		logger.Error("Failed to load session", log.FieldError, err)
		os.Exit(1)
	}

	scanner := slip.NewScanner(ocr.NewTesseract(ocr.TesseractConfig{
		Path:      cfg.TesseractPath,
		Languages: cfg.OCRLanguages,
		Timeout:   cfg.OCRTimeout,
	}), nil)

	deps := apphttp.Deps{
		Session: sess,
		Archive: l,
		Budgets: budgets,
		Slips:   scanner,
		Backend: be.Backend,
	}
	if cfg.SheetsExportEnabled() {
		exporter, err := google.NewFromEnv(startCtx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		deps.Exporter = exporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		RequestsPerMinute: cfg.RequestsPerMinute,
		SummaryCacheSize:  cfg.SummaryCacheSize,
		SummaryCacheTTL:   cfg.SummaryCacheTTL,
		Logger:            logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := monitor.Stop(ctx); err != nil {
			logger.Error("Connectivity monitor shutdown error", log.FieldError, err)
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
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

	if err := monitor.Start(ctx); err != nil {
		logger.Error("Failed to start connectivity monitor", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting moneynotes server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
