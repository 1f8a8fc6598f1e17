package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

// Ensure InMemory implements Store
var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety. A single
// mutex serializes every mutation, which trivially serializes operations on
// the same pair of users. Used by tests and the memory backend.
type InMemory struct {
	mu      sync.RWMutex
	users   map[core.Handle]struct{}
	records map[core.Handle]*BalanceRecord
	seq     int64
	entries []Entry
}

// NewInMemory creates an empty in-memory ledger store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[core.Handle]struct{}),
		records: make(map[core.Handle]*BalanceRecord),
	}
}

// RegisterUser makes a handle resolvable. Ledger operations against handles
// that were never registered fail with core.ErrNotFound.
func (s *InMemory) RegisterUser(handle core.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[handle] = struct{}{}
}

func (s *InMemory) Apply(ctx context.Context, e Entry) (Entry, error) {
	if !e.Amount.IsPositive() {
		return Entry{}, fmt.Errorf("%w: entry amount must be positive", core.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	debtor, err := s.getOrCreateLocked(e.Debtor)
	if err != nil {
		return Entry{}, err
	}
	creditor, err := s.getOrCreateLocked(e.Creditor)
	if err != nil {
		return Entry{}, err
	}

	// Both sides move together under the lock; conservation holds after
	// every Apply, not just eventually.
	debtor.apply(e.Creditor, e.Amount.Neg())
	creditor.apply(e.Debtor, e.Amount)

	s.seq++
	e.ID = s.seq
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *InMemory) Get(ctx context.Context, owner core.Handle) (*BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[owner]
	if !ok {
		return nil, fmt.Errorf("%w: no ledger record for %s", core.ErrNotFound, owner)
	}
	return rec.Clone(), nil
}

func (s *InMemory) GetOrCreate(ctx context.Context, owner core.Handle) (*BalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.getOrCreateLocked(owner)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *InMemory) getOrCreateLocked(owner core.Handle) (*BalanceRecord, error) {
	if _, ok := s.users[owner]; !ok {
		return nil, fmt.Errorf("%w: unknown user %s", core.ErrNotFound, owner)
	}
	rec, ok := s.records[owner]
	if !ok {
		rec = NewBalanceRecord(owner)
		s.records[owner] = rec
	}
	return rec, nil
}

// Entries returns a copy of the append-only entry log, oldest first.
func (s *InMemory) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
