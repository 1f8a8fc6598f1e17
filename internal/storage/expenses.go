package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

// CreateExpense persists an expense with its payment status and notes in one
// transaction. An ID is generated if the caller did not set one.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount_cents, payer, split_mode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Description, e.Amount.Cents, string(e.Payer), string(e.SplitMode), e.CreatedAt,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	for i, share := range e.PaymentStatus {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO payment_status (expense_id, position, participant, owed_cents, is_paid, paid_at, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, i, string(share.Participant), share.Owed.Cents, share.IsPaid, nullTime(share.PaidAt), share.Notes,
		)
		if err != nil {
			return core.Expense{}, fmt.Errorf("insert payment status for %s: %w", share.Participant, err)
		}
	}

	for i, note := range e.NonRoommateNotes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO non_roommate_notes (expense_id, position, person, amount_cents, description, is_paid, paid_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, i, note.Person, note.Amount.Cents, note.Description, note.IsPaid, nullTime(note.PaidAt),
		)
		if err != nil {
			return core.Expense{}, fmt.Errorf("insert non-roommate note %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"payer", string(e.Payer),
		"participants", len(e.PaymentStatus))

	return e, nil
}

// GetExpense loads an expense with its payment status and notes.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var e core.Expense
	var payer, mode string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, description, amount_cents, payer, split_mode, created_at FROM expenses WHERE id = ?",
		id,
	).Scan(&e.ID, &e.Description, &e.Amount.Cents, &payer, &mode, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Expense{}, fmt.Errorf("%w: expense %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	e.Payer = core.Handle(payer)
	e.SplitMode = core.SplitMode(mode)

	rows, err := r.db.QueryContext(ctx,
		`SELECT participant, owed_cents, is_paid, paid_at, notes
		 FROM payment_status WHERE expense_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get payment status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var share core.ParticipantShare
		var participant string
		var paidAt sql.NullTime
		if err := rows.Scan(&participant, &share.Owed.Cents, &share.IsPaid, &paidAt, &share.Notes); err != nil {
			return core.Expense{}, fmt.Errorf("scan payment status: %w", err)
		}
		share.Participant = core.Handle(participant)
		if paidAt.Valid {
			share.PaidAt = paidAt.Time
		}
		e.PaymentStatus = append(e.PaymentStatus, share)
		e.Participants = append(e.Participants, share.Participant)
	}
	if err := rows.Err(); err != nil {
		return core.Expense{}, fmt.Errorf("iterate payment status: %w", err)
	}

	noteRows, err := r.db.QueryContext(ctx,
		`SELECT person, amount_cents, description, is_paid, paid_at
		 FROM non_roommate_notes WHERE expense_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get non-roommate notes: %w", err)
	}
	defer noteRows.Close()

	for noteRows.Next() {
		var note core.NonRoommateNote
		var paidAt sql.NullTime
		if err := noteRows.Scan(&note.Person, &note.Amount.Cents, &note.Description, &note.IsPaid, &paidAt); err != nil {
			return core.Expense{}, fmt.Errorf("scan non-roommate note: %w", err)
		}
		if paidAt.Valid {
			note.PaidAt = paidAt.Time
		}
		e.NonRoommateNotes = append(e.NonRoommateNotes, note)
	}
	if err := noteRows.Err(); err != nil {
		return core.Expense{}, fmt.Errorf("iterate non-roommate notes: %w", err)
	}

	return e, nil
}

// UpdateShare writes back a participant's payment status on an expense.
func (r *SQLiteRepository) UpdateShare(ctx context.Context, expenseID string, share core.ParticipantShare) error {
	return updateShareTx(ctx, r.db, expenseID, share)
}

func updateShareTx(ctx context.Context, db execer, expenseID string, share core.ParticipantShare) error {
	res, err := db.ExecContext(ctx,
		`UPDATE payment_status SET is_paid = ?, paid_at = ?, notes = ?
		 WHERE expense_id = ? AND participant = ?`,
		share.IsPaid, nullTime(share.PaidAt), share.Notes, expenseID, string(share.Participant),
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: participant %s on expense %s", core.ErrNotFound, share.Participant, expenseID)
	}
	return nil
}

// UpdateNote writes back a non-roommate note, addressed by position.
func (r *SQLiteRepository) UpdateNote(ctx context.Context, expenseID string, index int, note core.NonRoommateNote) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE non_roommate_notes SET is_paid = ?, paid_at = ?
		 WHERE expense_id = ? AND position = ?`,
		note.IsPaid, nullTime(note.PaidAt), expenseID, index,
	)
	if err != nil {
		return fmt.Errorf("update non-roommate note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update non-roommate note: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: note %d on expense %s", core.ErrNotFound, index, expenseID)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
