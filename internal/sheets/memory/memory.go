// Package memory is an in-process EntryWriter for tests and local runs
// without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
	ports "github.com/varunkm11/Expense-Tracker-sub000/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	items []ledger.Entry

	// FailNext makes the next Append return an error, for worker tests.
	FailNext bool
}

var _ ports.EntryWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e ledger.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext {
		s.FailNext = false
		return "", fmt.Errorf("append entry %d: export target unavailable", e.ID)
	}
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.items...)
}
