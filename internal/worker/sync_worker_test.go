package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/amqp"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/sheets/memory"
)

type fakeSource struct {
	entries map[int64]ledger.Entry
	status  map[int64]string
}

func newFakeSource(entries ...ledger.Entry) *fakeSource {
	s := &fakeSource{
		entries: make(map[int64]ledger.Entry),
		status:  make(map[int64]string),
	}
	for _, e := range entries {
		s.entries[e.ID] = e
		s.status[e.ID] = "pending"
	}
	return s
}

func (s *fakeSource) GetEntry(ctx context.Context, id int64) (ledger.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, fmt.Errorf("%w: ledger entry %d", core.ErrNotFound, id)
	}
	return e, nil
}

func (s *fakeSource) GetPendingEntries(ctx context.Context, limit int) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for id, status := range s.status {
		if status == "pending" && len(out) < limit {
			out = append(out, s.entries[id])
		}
	}
	return out, nil
}

func (s *fakeSource) MarkEntrySynced(ctx context.Context, id int64) error {
	s.status[id] = "synced"
	return nil
}

func (s *fakeSource) MarkEntrySyncError(ctx context.Context, id int64) error {
	s.status[id] = "error"
	return nil
}

func entry(id int64, cents int64) ledger.Entry {
	return ledger.Entry{
		ID:       id,
		Debtor:   "a@x.com",
		Creditor: "p@x.com",
		Amount:   core.Money{Cents: cents},
		Kind:     ledger.EntrySplit,
	}
}

func TestHandleSyncMessage(t *testing.T) {
	source := newFakeSource(entry(1, 3000))
	writer := memory.New()
	w := NewSyncWorker(source, writer, 10)
	ctx := context.Background()

	if err := w.HandleSyncMessage(ctx, amqp.NewLedgerSyncMessage(1)); err != nil {
		t.Fatalf("HandleSyncMessage failed: %v", err)
	}
	if source.status[1] != "synced" {
		t.Errorf("status = %s, want synced", source.status[1])
	}
	if got := writer.Entries(); len(got) != 1 || got[0].Amount.Cents != 3000 {
		t.Errorf("exported = %+v", got)
	}

	if err := w.HandleSyncMessage(ctx, amqp.NewLedgerSyncMessage(99)); err == nil {
		t.Error("expected error for unknown entry")
	}
}

func TestProcessPendingEntries(t *testing.T) {
	source := newFakeSource(entry(1, 1000), entry(2, 2000))
	writer := memory.New()
	w := NewSyncWorker(source, writer, 10)

	if err := w.ProcessPendingEntries(context.Background()); err != nil {
		t.Fatalf("ProcessPendingEntries failed: %v", err)
	}
	if source.status[1] != "synced" || source.status[2] != "synced" {
		t.Errorf("statuses = %v, want both synced", source.status)
	}
	if len(writer.Entries()) != 2 {
		t.Errorf("exported = %d, want 2", len(writer.Entries()))
	}

	// Nothing pending is not an error.
	if err := w.ProcessPendingEntries(context.Background()); err != nil {
		t.Errorf("second run failed: %v", err)
	}
	if len(writer.Entries()) != 2 {
		t.Errorf("re-run exported extra entries: %d", len(writer.Entries()))
	}
}

func TestExportFailureMarksError(t *testing.T) {
	source := newFakeSource(entry(1, 1000))
	writer := memory.New()
	writer.FailNext = true
	w := NewSyncWorker(source, writer, 10)

	// ProcessPendingEntries logs and continues on export failure.
	if err := w.ProcessPendingEntries(context.Background()); err != nil {
		t.Fatalf("ProcessPendingEntries failed: %v", err)
	}
	if source.status[1] != "error" {
		t.Errorf("status = %s, want error", source.status[1])
	}
	if len(writer.Entries()) != 0 {
		t.Errorf("exported = %d, want 0", len(writer.Entries()))
	}
}

func TestStartupSyncCheck(t *testing.T) {
	source := newFakeSource(entry(1, 1000), entry(2, 2000), entry(3, 3000))
	writer := memory.New()
	w := NewSyncWorker(source, writer, 1)

	// Startup check uses a larger batch than the regular cycle.
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck failed: %v", err)
	}
	if len(writer.Entries()) != 3 {
		t.Errorf("exported = %d, want 3", len(writer.Entries()))
	}
}
