// Package worker exports committed ledger entries to the configured sheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/amqp"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/metrics"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/sheets"
)

// EntrySource is the storage surface the worker reads from and reports back
// to.
type EntrySource interface {
	GetEntry(ctx context.Context, id int64) (ledger.Entry, error)
	GetPendingEntries(ctx context.Context, limit int) ([]ledger.Entry, error)
	MarkEntrySynced(ctx context.Context, id int64) error
	MarkEntrySyncError(ctx context.Context, id int64) error
}

// SyncWorker moves ledger entries from the database to the export sheet.
// Export is at-least-once; the sheet may see duplicates after a crash between
// append and mark, never gaps.
type SyncWorker struct {
	source    EntrySource
	writer    sheets.EntryWriter
	batchSize int
}

func NewSyncWorker(source EntrySource, writer sheets.EntryWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		source:    source,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "entry_id", msg.EntryID)

	entry, err := w.source.GetEntry(ctx, msg.EntryID)
	if err != nil {
		return fmt.Errorf("get ledger entry: %w", err)
	}

	return w.export(ctx, entry)
}

// ProcessPendingEntries exports entries still marked pending. This is the
// catch-up path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) error {
	pending, err := w.source.GetPendingEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, entry := range pending {
		if err := w.export(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry", "entry_id", entry.ID, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains the pending backlog once at worker startup, in a
// larger batch, to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.source.GetPendingEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, entry := range pending {
		if err := w.export(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry during startup",
				"entry_id", entry.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

// Run processes pending entries on an interval until the context is
// cancelled. Used alongside the AMQP consumer so either path alone keeps the
// export current.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingEntries(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) export(ctx context.Context, entry ledger.Entry) error {
	ref, err := w.writer.Append(ctx, entry)
	if err != nil {
		metrics.ObserveSyncExport("error")
		if markErr := w.source.MarkEntrySyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "entry_id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("append entry to sheet: %w", err)
	}

	if err := w.source.MarkEntrySynced(ctx, entry.ID); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}

	metrics.ObserveSyncExport("synced")
	slog.InfoContext(ctx, "Entry exported",
		"entry_id", entry.ID,
		"sheets_ref", ref)
	return nil
}
