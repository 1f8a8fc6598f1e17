package memory

import (
	"context"
	"testing"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
)

func TestAppendAndEntries(t *testing.T) {
	store := New()
	ctx := context.Background()

	ref, err := store.Append(ctx, ledger.Entry{
		ID:       1,
		Debtor:   "a@x.com",
		Creditor: "p@x.com",
		Amount:   core.Money{Cents: 3000},
		Kind:     ledger.EntrySplit,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %s, want mem:1", ref)
	}

	entries := store.Entries()
	if len(entries) != 1 || entries[0].ID != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestFailNext(t *testing.T) {
	store := New()
	store.FailNext = true

	if _, err := store.Append(context.Background(), ledger.Entry{ID: 2}); err == nil {
		t.Fatal("expected error with FailNext set")
	}

	// Failure is one-shot.
	if _, err := store.Append(context.Background(), ledger.Entry{ID: 3}); err != nil {
		t.Fatalf("second Append failed: %v", err)
	}
	if len(store.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(store.Entries()))
	}
}
