// Package storage persists users, expenses and the balance ledger in SQLite.
//
// Ledger mutations run as a single transaction that appends the entry and
// updates both owners' balance rows, so the pairwise negation invariant holds
// in the database exactly as it does in memory.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var _ ledger.Store = (*SQLiteRepository)(nil)

// execer is satisfied by both *sql.DB and *sql.Tx, letting statement helpers
// run standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Apply implements ledger.Store. The entry insert and both balance updates
// commit together or not at all; SQLite's write serialization orders
// concurrent applications of the same pair.
func (r *SQLiteRepository) Apply(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	e, err = r.applyEntryTx(ctx, tx, e)
	if err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit ledger entry: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry applied",
		"id", e.ID,
		"debtor", string(e.Debtor),
		"creditor", string(e.Creditor),
		"amount_cents", e.Amount.Cents,
		"kind", string(e.Kind))

	return e, nil
}

// SettleShare flips a participant's payment status and applies the matching
// settlement entry in one transaction. A crash can never leave a share marked
// paid with the debt still on the ledger, or the reverse.
func (r *SQLiteRepository) SettleShare(ctx context.Context, expenseID string, share core.ParticipantShare, e ledger.Entry) (ledger.Entry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateShareTx(ctx, tx, expenseID, share); err != nil {
		return ledger.Entry{}, err
	}
	e, err = r.applyEntryTx(ctx, tx, e)
	if err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit settlement: %w", err)
	}

	slog.InfoContext(ctx, "Share settled",
		"expense_id", expenseID,
		"participant", string(share.Participant),
		"entry_id", e.ID,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (r *SQLiteRepository) applyEntryTx(ctx context.Context, tx *sql.Tx, e ledger.Entry) (ledger.Entry, error) {
	if err := r.ensureRecordTx(ctx, tx, e.Debtor); err != nil {
		return ledger.Entry{}, err
	}
	if err := r.ensureRecordTx(ctx, tx, e.Creditor); err != nil {
		return ledger.Entry{}, err
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (debtor, creditor, amount_cents, kind, expense_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.Debtor), string(e.Creditor), e.Amount.Cents, string(e.Kind), e.ExpenseID, e.CreatedAt,
	)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("ledger entry id: %w", err)
	}

	// The debtor's view of the creditor goes down, the creditor's view of
	// the debtor goes up by the same amount.
	if err := r.applyDeltaTx(ctx, tx, e.Debtor, e.Creditor, -e.Amount.Cents); err != nil {
		return ledger.Entry{}, err
	}
	if err := r.applyDeltaTx(ctx, tx, e.Creditor, e.Debtor, e.Amount.Cents); err != nil {
		return ledger.Entry{}, err
	}

	return e, nil
}

// ensureRecordTx is the single creation path for balance records. The owner
// must be a registered user.
func (r *SQLiteRepository) ensureRecordTx(ctx context.Context, tx *sql.Tx, owner core.Handle) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE handle = ?", string(owner)).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: user %s", core.ErrNotFound, owner)
	}
	if err != nil {
		return fmt.Errorf("check user %s: %w", owner, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO balance_records (owner) VALUES (?)", string(owner))
	if err != nil {
		return fmt.Errorf("create balance record for %s: %w", owner, err)
	}
	return nil
}

func (r *SQLiteRepository) applyDeltaTx(ctx context.Context, tx *sql.Tx, owner, counterparty core.Handle, deltaCents int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO counterparty_balances (owner, counterparty, amount_cents)
		 VALUES (?, ?, ?)
		 ON CONFLICT (owner, counterparty) DO UPDATE
		 SET amount_cents = amount_cents + excluded.amount_cents`,
		string(owner), string(counterparty), deltaCents,
	)
	if err != nil {
		return fmt.Errorf("upsert balance %s/%s: %w", owner, counterparty, err)
	}

	// Settled pairs disappear from the record rather than lingering at zero.
	_, err = tx.ExecContext(ctx,
		"DELETE FROM counterparty_balances WHERE owner = ? AND counterparty = ? AND amount_cents = 0",
		string(owner), string(counterparty),
	)
	if err != nil {
		return fmt.Errorf("prune zero balance %s/%s: %w", owner, counterparty, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE balance_records SET
		   total_owed_to_owner_cents = COALESCE(
		     (SELECT SUM(amount_cents) FROM counterparty_balances WHERE owner = ? AND amount_cents > 0), 0),
		   total_owed_by_owner_cents = COALESCE(
		     (SELECT SUM(-amount_cents) FROM counterparty_balances WHERE owner = ? AND amount_cents < 0), 0)
		 WHERE owner = ?`,
		string(owner), string(owner), string(owner),
	)
	if err != nil {
		return fmt.Errorf("update totals for %s: %w", owner, err)
	}
	return nil
}

// Get implements ledger.Store.
func (r *SQLiteRepository) Get(ctx context.Context, owner core.Handle) (*ledger.BalanceRecord, error) {
	rec := ledger.NewBalanceRecord(owner)
	err := r.db.QueryRowContext(ctx,
		"SELECT total_owed_to_owner_cents, total_owed_by_owner_cents FROM balance_records WHERE owner = ?",
		string(owner),
	).Scan(&rec.TotalOwedToOwner.Cents, &rec.TotalOwedByOwner.Cents)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: balance record for %s", core.ErrNotFound, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance record for %s: %w", owner, err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT counterparty, amount_cents FROM counterparty_balances WHERE owner = ?",
		string(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("get counterparty balances for %s: %w", owner, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cp string
		var cents int64
		if err := rows.Scan(&cp, &cents); err != nil {
			return nil, fmt.Errorf("scan counterparty balance: %w", err)
		}
		rec.Counterparties[core.Handle(cp)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterparty balances: %w", err)
	}

	return rec, nil
}

// GetOrCreate implements ledger.Store.
func (r *SQLiteRepository) GetOrCreate(ctx context.Context, owner core.Handle) (*ledger.BalanceRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.ensureRecordTx(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit balance record: %w", err)
	}

	return r.Get(ctx, owner)
}
