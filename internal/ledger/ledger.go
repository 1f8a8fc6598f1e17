// Package ledger tracks who owes whom across split expenses and settlements.
//
// Every mutation is expressed as an Entry (debtor, creditor, amount) applied
// to both sides of the pair atomically by the backing Store. Balances are
// conserved by construction: for any pair (A, B) the signed amount on A's
// record is always the exact negation of the amount on B's record.
//
// Settlements are not clamped to the outstanding debt. Overpaying flips the
// sign of the pairwise balance, which models an advance the ledger carries
// as credit toward future expenses.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

const (
	EntrySplit      EntryKind = "split"
	EntrySettlement EntryKind = "settlement"
)

type (
	// EntryKind tags what produced a ledger entry.
	EntryKind string

	// Entry is an immutable ledger mutation: Debtor comes to owe Creditor
	// the given positive amount. A settlement is recorded with the payer's
	// counterparty as debtor flipped, see Service.Settle.
	Entry struct {
		ID        int64
		Debtor    core.Handle
		Creditor  core.Handle
		Amount    core.Money
		Kind      EntryKind
		ExpenseID string // empty for free-form settlements
		CreatedAt time.Time
	}

	// Payment mirrors split.Payment without importing the split package.
	Payment struct {
		Participant core.Handle
		Amount      core.Money
	}

	// Summary is one user's aggregated view of the ledger.
	Summary struct {
		User       core.Handle
		TotalOwed  core.Money // owed to the user
		TotalOwing core.Money // owed by the user
		NetBalance core.Money
		Balances   map[core.Handle]core.Money // signed per counterparty
	}

	// PairwiseBalance reconciles two users' records into non-negative
	// magnitudes. At most one of AOwesB / BOwesA is nonzero when the
	// stored data is consistent, but the computation tolerates one-sided
	// records and clamps negatives rather than assuming consistency.
	PairwiseBalance struct {
		UserA        core.Handle
		UserB        core.Handle
		AOwesB       core.Money
		BOwesA       core.Money
		NetBalance   core.Money // positive: B owes A
		HumanSummary string
	}
)

// Store is the persistence port for balance records and the entry log.
//
// Apply must update both sides of the pair and append the entry as a single
// atomic unit, and must serialize concurrent mutations of the same pair.
// GetOrCreate is the single auditable creation path for records; both it and
// Get return core.ErrNotFound for handles with no registered user.
type Store interface {
	Apply(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, owner core.Handle) (*BalanceRecord, error)
	GetOrCreate(ctx context.Context, owner core.Handle) (*BalanceRecord, error)
}

// Service implements the balance ledger operations over a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ApplySplit records the obligations of a split expense: each participant
// comes to owe the payer their share. Entries with non-positive amounts or a
// participant equal to the payer are rejected before anything is written, so
// a failed call performs no partial mutation.
func (s *Service) ApplySplit(ctx context.Context, payer core.Handle, payments []Payment, expenseID string) ([]Entry, error) {
	if err := payer.Validate(); err != nil {
		return nil, fmt.Errorf("payer: %w", err)
	}
	for _, p := range payments {
		if !p.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: split amount for %s must be positive", core.ErrInvalidAmount, p.Participant)
		}
		if p.Participant == payer {
			return nil, fmt.Errorf("%w: %s", core.ErrPayerIsParticipant, p.Participant)
		}
	}

	entries := make([]Entry, 0, len(payments))
	for _, p := range payments {
		applied, err := s.store.Apply(ctx, Entry{
			Debtor:    p.Participant,
			Creditor:  payer,
			Amount:    p.Amount,
			Kind:      EntrySplit,
			ExpenseID: expenseID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return entries, fmt.Errorf("apply split entry for %s: %w", p.Participant, err)
		}
		entries = append(entries, applied)
	}
	return entries, nil
}

// SettlementEntry validates and builds the entry recording a payment from
// participant to payer. A settlement is the inverse of a split entry: the
// payer (creditor) is now owed less by the participant, so the payer takes
// the debtor side. Callers hand the entry to a Store.
func SettlementEntry(payer, participant core.Handle, amount core.Money, expenseID string) (Entry, error) {
	if err := payer.Validate(); err != nil {
		return Entry{}, fmt.Errorf("payer: %w", err)
	}
	if err := participant.Validate(); err != nil {
		return Entry{}, fmt.Errorf("participant: %w", err)
	}
	if payer == participant {
		return Entry{}, fmt.Errorf("%w: cannot settle with self", core.ErrPayerIsParticipant)
	}
	if !amount.IsPositive() {
		return Entry{}, fmt.Errorf("%w: settlement must be positive", core.ErrInvalidAmount)
	}
	return Entry{
		Debtor:    payer,
		Creditor:  participant,
		Amount:    amount,
		Kind:      EntrySettlement,
		ExpenseID: expenseID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Settle records a payment from participant to payer, reducing what the
// participant owes. Amounts above the tracked debt are allowed and flip the
// pairwise balance (see package comment). The expenseID ties the settlement
// to a specific expense; empty means a free-form "pay down my balance".
func (s *Service) Settle(ctx context.Context, payer, participant core.Handle, amount core.Money, expenseID string) (Entry, error) {
	e, err := SettlementEntry(payer, participant, amount, expenseID)
	if err != nil {
		return Entry{}, err
	}
	entry, err := s.store.Apply(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("apply settlement: %w", err)
	}
	return entry, nil
}

// Summary returns the user's current aggregated balances. Reads are pure and
// reflect the stored state exactly.
func (s *Service) Summary(ctx context.Context, user core.Handle) (Summary, error) {
	if err := user.Validate(); err != nil {
		return Summary{}, err
	}
	rec, err := s.store.GetOrCreate(ctx, user)
	if err != nil {
		return Summary{}, fmt.Errorf("summary for %s: %w", user, err)
	}
	out := Summary{
		User:       user,
		TotalOwed:  rec.TotalOwedToOwner,
		TotalOwing: rec.TotalOwedByOwner,
		NetBalance: rec.TotalOwedToOwner.Sub(rec.TotalOwedByOwner),
		Balances:   make(map[core.Handle]core.Money, len(rec.Counterparties)),
	}
	for cp, amount := range rec.Counterparties {
		out.Balances[cp] = amount
	}
	return out, nil
}

// Pairwise reconciles the balance between two users from whichever records
// exist. It never assumes the two sides agree: each magnitude is computed
// from one side's signed value with negatives clamped to zero.
func (s *Service) Pairwise(ctx context.Context, userA, userB core.Handle) (PairwiseBalance, error) {
	if err := userA.Validate(); err != nil {
		return PairwiseBalance{}, err
	}
	if err := userB.Validate(); err != nil {
		return PairwiseBalance{}, err
	}

	out := PairwiseBalance{UserA: userA, UserB: userB}

	recA, err := s.store.Get(ctx, userA)
	if err != nil && !core.IsNotFound(err) {
		return PairwiseBalance{}, fmt.Errorf("pairwise %s/%s: %w", userA, userB, err)
	}
	recB, err := s.store.Get(ctx, userB)
	if err != nil && !core.IsNotFound(err) {
		return PairwiseBalance{}, fmt.Errorf("pairwise %s/%s: %w", userA, userB, err)
	}
	if recA == nil && recB == nil {
		return PairwiseBalance{}, fmt.Errorf("%w: neither %s nor %s has a ledger record", core.ErrNotFound, userA, userB)
	}

	var signedA core.Money // positive: B owes A
	switch {
	case recA != nil:
		signedA = recA.Counterparties[userB]
	case recB != nil:
		signedA = recB.Counterparties[userA].Neg()
	}

	if signedA.IsPositive() {
		out.BOwesA = signedA
	} else if signedA.IsNegative() {
		out.AOwesB = signedA.Abs()
	}
	out.NetBalance = signedA
	out.HumanSummary = humanSummary(userA, userB, signedA)
	return out, nil
}

func humanSummary(a, b core.Handle, signedA core.Money) string {
	switch {
	case signedA.IsPositive():
		return fmt.Sprintf("%s owes %s %s", b, a, signedA)
	case signedA.IsNegative():
		return fmt.Sprintf("%s owes %s %s", a, b, signedA.Abs())
	default:
		return fmt.Sprintf("%s and %s are settled up", a, b)
	}
}
