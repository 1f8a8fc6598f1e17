package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
)

// Sync states for ledger entries queued for export.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// GetPendingEntries returns the oldest ledger entries still awaiting export.
func (r *SQLiteRepository) GetPendingEntries(ctx context.Context, limit int) ([]ledger.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, debtor, creditor, amount_cents, kind, expense_id, created_at
		 FROM ledger_entries WHERE sync_status = ? ORDER BY id LIMIT ?`,
		SyncPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var debtor, creditor, kind string
		if err := rows.Scan(&e.ID, &debtor, &creditor, &e.Amount.Cents, &kind, &e.ExpenseID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		e.Debtor = core.Handle(debtor)
		e.Creditor = core.Handle(creditor)
		e.Kind = ledger.EntryKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return entries, nil
}

// GetEntry loads a single ledger entry by ID.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (ledger.Entry, error) {
	var e ledger.Entry
	var debtor, creditor, kind string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, debtor, creditor, amount_cents, kind, expense_id, created_at
		 FROM ledger_entries WHERE id = ?`,
		id,
	).Scan(&e.ID, &debtor, &creditor, &e.Amount.Cents, &kind, &e.ExpenseID, &e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("get ledger entry %d: %w", id, err)
	}
	e.Debtor = core.Handle(debtor)
	e.Creditor = core.Handle(creditor)
	e.Kind = ledger.EntryKind(kind)
	return e, nil
}

// MarkEntrySynced marks a ledger entry as successfully exported.
func (r *SQLiteRepository) MarkEntrySynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncSynced); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Ledger entry marked as synced", "id", id)
	return nil
}

// MarkEntrySyncError marks a ledger entry as having failed export.
func (r *SQLiteRepository) MarkEntrySyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Ledger entry marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE ledger_entries SET sync_status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: ledger entry %d", core.ErrNotFound, id)
	}
	return nil
}
