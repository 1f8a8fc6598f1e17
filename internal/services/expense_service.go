// Package services orchestrates expense operations across the store, the
// balance ledger and the AMQP export queue.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/split"
)

// Store is the persistence surface the service needs beyond the ledger.
type Store interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, handle core.Handle) (core.User, error)
	UserExists(ctx context.Context, handle core.Handle) (bool, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	UpdateShare(ctx context.Context, expenseID string, share core.ParticipantShare) error
	UpdateNote(ctx context.Context, expenseID string, index int, note core.NonRoommateNote) error
	Close() error
}

// Publisher queues ledger entries for background export.
type Publisher interface {
	PublishEntrySync(ctx context.Context, entryID int64) error
	Close() error
}

// ShareSettler is implemented by stores that can flip a payment-status entry
// and apply the matching ledger entry in one transaction. SettleParticipant
// prefers it over the separate UpdateShare + ledger write.
type ShareSettler interface {
	SettleShare(ctx context.Context, expenseID string, share core.ParticipantShare, e ledger.Entry) (ledger.Entry, error)
}

// ExpenseService ties expense persistence to the balance ledger. Every
// ledger-affecting operation goes through here exactly once.
type ExpenseService struct {
	store     Store
	ledger    *ledger.Service
	publisher Publisher
}

// NewExpenseService builds the service. The publisher may be nil; sync
// messages are then skipped and the worker's catch-up scan picks entries up
// from the database.
func NewExpenseService(store Store, ledgerSvc *ledger.Service, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		ledger:    ledgerSvc,
		publisher: publisher,
	}
}

// CreateExpenseInput carries everything needed to record a shared expense.
type CreateExpenseInput struct {
	Description      string
	Amount           core.Money
	Payer            core.Handle
	Participants     []core.Handle
	Mode             core.SplitMode
	CustomAmounts    map[core.Handle]core.Money
	NonRoommateNotes []core.NonRoommateNote
}

// RegisterUser adds a handle to the user registry.
func (s *ExpenseService) RegisterUser(ctx context.Context, handle, name string) (core.User, error) {
	h, err := core.ParseHandle(handle)
	if err != nil {
		return core.User{}, err
	}
	return s.store.CreateUser(ctx, core.User{Handle: h, Name: name})
}

// GetUser looks up a registered user.
func (s *ExpenseService) GetUser(ctx context.Context, handle core.Handle) (core.User, error) {
	return s.store.GetUser(ctx, handle)
}

// CreateExpense computes the split plan, persists the expense and applies
// the resulting obligations to the ledger.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (core.Expense, error) {
	for _, h := range append([]core.Handle{in.Payer}, in.Participants...) {
		ok, err := s.store.UserExists(ctx, h)
		if err != nil {
			return core.Expense{}, fmt.Errorf("check user %s: %w", h, err)
		}
		if !ok {
			return core.Expense{}, fmt.Errorf("%w: user %s", core.ErrNotFound, h)
		}
	}

	plan, err := split.Compute(split.Input{
		Amount:        in.Amount,
		Payer:         in.Payer,
		Participants:  in.Participants,
		Mode:          in.Mode,
		CustomAmounts: in.CustomAmounts,
	})
	if err != nil {
		return core.Expense{}, err
	}

	expense := core.Expense{
		Description:      in.Description,
		Amount:           in.Amount,
		Payer:            in.Payer,
		SplitMode:        in.Mode,
		Participants:     in.Participants,
		PaymentStatus:    plan.Shares(),
		NonRoommateNotes: in.NonRoommateNotes,
		CreatedAt:        time.Now().UTC(),
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, err
	}

	expense, err = s.store.CreateExpense(ctx, expense)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	// Zero custom shares never reach the ledger; there is nothing to owe.
	payments := make([]ledger.Payment, 0, len(plan.Payments))
	for _, p := range plan.Payments {
		if !p.Amount.IsPositive() {
			continue
		}
		payments = append(payments, ledger.Payment{Participant: p.Participant, Amount: p.Amount})
	}
	if len(payments) > 0 {
		entries, err := s.ledger.ApplySplit(ctx, in.Payer, payments, expense.ID)
		if err != nil {
			return core.Expense{}, fmt.Errorf("apply split to ledger: %w", err)
		}
		s.publishEntries(ctx, entries)
	}

	return expense, nil
}

// GetExpense loads an expense with its payment status.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// SettleParticipant marks a participant's share paid and credits the payment
// against the ledger as one logical operation. Marking is one-way; a share
// already paid returns core.ErrAlreadyPaid before the ledger is touched.
func (s *ExpenseService) SettleParticipant(ctx context.Context, expenseID string, participant core.Handle, notes string) (core.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return core.Expense{}, err
	}

	share, err := expense.MarkParticipantPaid(participant, notes, time.Now().UTC())
	if err != nil {
		return core.Expense{}, err
	}

	// A zero custom share settles by bookkeeping alone.
	if !share.Owed.IsPositive() {
		if err := s.store.UpdateShare(ctx, expenseID, *share); err != nil {
			return core.Expense{}, err
		}
		return expense, nil
	}

	var entry ledger.Entry
	if settler, ok := s.store.(ShareSettler); ok {
		e, err := ledger.SettlementEntry(expense.Payer, participant, share.Owed, expenseID)
		if err != nil {
			return core.Expense{}, err
		}
		entry, err = settler.SettleShare(ctx, expenseID, *share, e)
		if err != nil {
			return core.Expense{}, err
		}
	} else {
		if err := s.store.UpdateShare(ctx, expenseID, *share); err != nil {
			return core.Expense{}, err
		}
		entry, err = s.ledger.Settle(ctx, expense.Payer, participant, share.Owed, expenseID)
		if err != nil {
			return core.Expense{}, err
		}
	}
	s.publishEntries(ctx, []ledger.Entry{entry})

	return expense, nil
}

// SettleDirect records a free-form payment from one user to another, outside
// any particular expense. Overpayment is allowed and flips the balance.
func (s *ExpenseService) SettleDirect(ctx context.Context, from, to core.Handle, amount core.Money) (ledger.Entry, error) {
	for _, h := range []core.Handle{from, to} {
		ok, err := s.store.UserExists(ctx, h)
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("check user %s: %w", h, err)
		}
		if !ok {
			return ledger.Entry{}, fmt.Errorf("%w: user %s", core.ErrNotFound, h)
		}
	}

	// "from pays to": the debt from owes to is reduced, so to takes the
	// creditor role in the settlement entry.
	entry, err := s.ledger.Settle(ctx, to, from, amount, "")
	if err != nil {
		return ledger.Entry{}, err
	}
	s.publishEntries(ctx, []ledger.Entry{entry})
	return entry, nil
}

// MarkNonRoommateNotePaid flips a bookkeeping note to paid. Notes never touch
// the ledger; re-marking is a no-op.
func (s *ExpenseService) MarkNonRoommateNotePaid(ctx context.Context, expenseID string, index int) (core.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return core.Expense{}, err
	}

	note, err := expense.MarkNotePaid(index, time.Now().UTC())
	if err != nil {
		return core.Expense{}, err
	}
	if err := s.store.UpdateNote(ctx, expenseID, index, *note); err != nil {
		return core.Expense{}, err
	}
	return expense, nil
}

// Summary returns one user's aggregated ledger view.
func (s *ExpenseService) Summary(ctx context.Context, user core.Handle) (ledger.Summary, error) {
	return s.ledger.Summary(ctx, user)
}

// Pairwise returns the reconciled balance between two users.
func (s *ExpenseService) Pairwise(ctx context.Context, userA, userB core.Handle) (ledger.PairwiseBalance, error) {
	return s.ledger.Pairwise(ctx, userA, userB)
}

func (s *ExpenseService) publishEntries(ctx context.Context, entries []ledger.Entry) {
	if s.publisher == nil {
		return
	}
	for _, e := range entries {
		if err := s.publisher.PublishEntrySync(ctx, e.ID); err != nil {
			// The entry is committed locally; the worker's catch-up scan
			// will still pick it up.
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"entry_id", e.ID, "error", err)
		}
	}
}

// Close closes the store and, when present, the publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}
	return nil
}
