package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/amqp"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/config"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/log"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/metrics"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/sheets"
	gsheet "github.com/varunkm11/Expense-Tracker-sub000/internal/sheets/google"
	mem "github.com/varunkm11/Expense-Tracker-sub000/internal/sheets/memory"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/storage"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	metrics.Init()

	logger.Info("Starting tracker-worker")

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var writer sheets.EntryWriter
	if cfg.SheetsConfigured() {
		client, err := gsheet.NewFromConfig(ctx, cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		writer = mem.New()
		logger.Warn("Google Sheets not configured, exporting to in-memory store")
	}

	syncWorker := worker.NewSyncWorker(repo, writer, cfg.SyncBatchSize)

	// Pick up entries that were committed while no worker was running.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
		// Keep going; the periodic scan retries everything still pending.
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqp.ConsumeWithReconnect(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			func(msg *amqp.LedgerSyncMessage) error {
				return syncWorker.HandleSyncMessage(gctx, msg)
			})
	})

	g.Go(func() error {
		return syncWorker.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
