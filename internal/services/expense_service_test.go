package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
)

type fakeStore struct {
	users            map[core.Handle]core.User
	expenses         map[string]core.Expense
	nextID           int
	closed           bool
	updateShareCalls int
}

func newFakeStore(handles ...core.Handle) *fakeStore {
	s := &fakeStore{
		users:    make(map[core.Handle]core.User),
		expenses: make(map[string]core.Expense),
	}
	for _, h := range handles {
		s.users[h] = core.User{Handle: h, Name: string(h)}
	}
	return s
}

func (s *fakeStore) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if existing, ok := s.users[u.Handle]; ok {
		return existing, nil
	}
	s.users[u.Handle] = u
	return u, nil
}

func (s *fakeStore) GetUser(ctx context.Context, handle core.Handle) (core.User, error) {
	u, ok := s.users[handle]
	if !ok {
		return core.User{}, fmt.Errorf("%w: user %s", core.ErrNotFound, handle)
	}
	return u, nil
}

func (s *fakeStore) UserExists(ctx context.Context, handle core.Handle) (bool, error) {
	_, ok := s.users[handle]
	return ok, nil
}

func (s *fakeStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	s.nextID++
	e.ID = fmt.Sprintf("exp-%d", s.nextID)
	s.expenses[e.ID] = e
	return e, nil
}

func (s *fakeStore) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("%w: expense %s", core.ErrNotFound, id)
	}
	return e, nil
}

func (s *fakeStore) UpdateShare(ctx context.Context, expenseID string, share core.ParticipantShare) error {
	s.updateShareCalls++
	e, ok := s.expenses[expenseID]
	if !ok {
		return fmt.Errorf("%w: expense %s", core.ErrNotFound, expenseID)
	}
	for i := range e.PaymentStatus {
		if e.PaymentStatus[i].Participant == share.Participant {
			e.PaymentStatus[i] = share
			s.expenses[expenseID] = e
			return nil
		}
	}
	return fmt.Errorf("%w: participant %s", core.ErrNotFound, share.Participant)
}

func (s *fakeStore) UpdateNote(ctx context.Context, expenseID string, index int, note core.NonRoommateNote) error {
	e, ok := s.expenses[expenseID]
	if !ok {
		return fmt.Errorf("%w: expense %s", core.ErrNotFound, expenseID)
	}
	if index < 0 || index >= len(e.NonRoommateNotes) {
		return fmt.Errorf("%w: note %d", core.ErrNotFound, index)
	}
	e.NonRoommateNotes[index] = note
	s.expenses[expenseID] = e
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

// settlerStore adds the single-transaction settlement capability on top of
// the plain fake, mimicking the SQLite repository.
type settlerStore struct {
	*fakeStore
	mem         *ledger.InMemory
	settleCalls int
}

func (s *settlerStore) SettleShare(ctx context.Context, expenseID string, share core.ParticipantShare, e ledger.Entry) (ledger.Entry, error) {
	s.settleCalls++
	exp, ok := s.expenses[expenseID]
	if !ok {
		return ledger.Entry{}, fmt.Errorf("%w: expense %s", core.ErrNotFound, expenseID)
	}
	for i := range exp.PaymentStatus {
		if exp.PaymentStatus[i].Participant == share.Participant {
			exp.PaymentStatus[i] = share
			s.expenses[expenseID] = exp
			return s.mem.Apply(ctx, e)
		}
	}
	return ledger.Entry{}, fmt.Errorf("%w: participant %s", core.ErrNotFound, share.Participant)
}

type fakePublisher struct {
	published []int64
	err       error
}

func (p *fakePublisher) PublishEntrySync(ctx context.Context, entryID int64) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, entryID)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newTestService(handles ...core.Handle) (*ExpenseService, *fakeStore, *ledger.InMemory, *fakePublisher) {
	store := newFakeStore(handles...)
	mem := ledger.NewInMemory()
	for _, h := range handles {
		mem.RegisterUser(h)
	}
	pub := &fakePublisher{}
	return NewExpenseService(store, ledger.NewService(mem), pub), store, mem, pub
}

func TestCreateExpenseEqualSplit(t *testing.T) {
	svc, store, mem, pub := newTestService("payer@x.com", "a@x.com", "b@x.com")
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "groceries",
		Amount:       core.Money{Cents: 9000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com", "b@x.com"},
		Mode:         core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if expense.ID == "" {
		t.Fatal("expected expense ID")
	}
	if len(expense.PaymentStatus) != 2 || expense.PaymentStatus[0].Owed.Cents != 3000 {
		t.Errorf("payment status = %+v, want 3000 each", expense.PaymentStatus)
	}
	if _, ok := store.expenses[expense.ID]; !ok {
		t.Error("expense not persisted")
	}

	if got := len(mem.Entries()); got != 2 {
		t.Fatalf("ledger entries = %d, want 2", got)
	}
	if got := len(pub.published); got != 2 {
		t.Errorf("published sync messages = %d, want 2", got)
	}

	sum, err := svc.Summary(ctx, "payer@x.com")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.TotalOwed.Cents != 6000 {
		t.Errorf("payer owed = %d, want 6000", sum.TotalOwed.Cents)
	}
}

func TestCreateExpenseCustomSkipsZeroShares(t *testing.T) {
	svc, _, mem, _ := newTestService("payer@x.com", "a@x.com", "b@x.com")
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "cab",
		Amount:       core.Money{Cents: 5000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com", "b@x.com"},
		Mode:         core.SplitCustom,
		CustomAmounts: map[core.Handle]core.Money{
			"a@x.com": {Cents: 2000},
			"b@x.com": {Cents: 0},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	entries := mem.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1 (zero share skipped)", len(entries))
	}
	if entries[0].Debtor != "a@x.com" || entries[0].Amount.Cents != 2000 {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestCreateExpenseUnknownParticipant(t *testing.T) {
	svc, _, mem, _ := newTestService("payer@x.com")
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "dinner",
		Amount:       core.Money{Cents: 3000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"ghost@x.com"},
		Mode:         core.SplitEqual,
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(mem.Entries()) != 0 {
		t.Error("failed create must not touch the ledger")
	}
}

func TestSettleParticipantOnce(t *testing.T) {
	svc, _, mem, _ := newTestService("payer@x.com", "a@x.com", "b@x.com")
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "rent",
		Amount:       core.Money{Cents: 9000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com", "b@x.com"},
		Mode:         core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	entriesBefore := len(mem.Entries())

	updated, err := svc.SettleParticipant(ctx, expense.ID, "a@x.com", "venmo")
	if err != nil {
		t.Fatalf("SettleParticipant failed: %v", err)
	}
	share, err := updated.Share("a@x.com")
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if !share.IsPaid || share.Notes != "venmo" || share.PaidAt.IsZero() {
		t.Errorf("share = %+v, want paid with notes", share)
	}
	if got := len(mem.Entries()); got != entriesBefore+1 {
		t.Fatalf("ledger entries = %d, want exactly one settlement added", got)
	}

	sum, err := svc.Summary(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.TotalOwing.Cents != 0 {
		t.Errorf("a still owes %d after settling", sum.TotalOwing.Cents)
	}

	// Second mark is rejected before the ledger is touched.
	_, err = svc.SettleParticipant(ctx, expense.ID, "a@x.com", "again")
	if !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("second settle = %v, want ErrAlreadyPaid", err)
	}
	if got := len(mem.Entries()); got != entriesBefore+1 {
		t.Errorf("ledger entries = %d; a rejected settle must not add entries", got)
	}
}

func TestSettleParticipantUsesSingleTransactionStore(t *testing.T) {
	base := newFakeStore("payer@x.com", "a@x.com")
	mem := ledger.NewInMemory()
	mem.RegisterUser("payer@x.com")
	mem.RegisterUser("a@x.com")
	store := &settlerStore{fakeStore: base, mem: mem}
	pub := &fakePublisher{}
	svc := NewExpenseService(store, ledger.NewService(mem), pub)
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "heating",
		Amount:       core.Money{Cents: 6000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com"},
		Mode:         core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	updated, err := svc.SettleParticipant(ctx, expense.ID, "a@x.com", "")
	if err != nil {
		t.Fatalf("SettleParticipant failed: %v", err)
	}
	share, err := updated.Share("a@x.com")
	if err != nil || !share.IsPaid {
		t.Fatalf("share = %+v, %v; want paid", share, err)
	}

	if store.settleCalls != 1 {
		t.Errorf("SettleShare calls = %d, want 1", store.settleCalls)
	}
	if base.updateShareCalls != 0 {
		t.Errorf("UpdateShare calls = %d; the combined settlement must replace the separate write", base.updateShareCalls)
	}
	if got := len(mem.Entries()); got != 2 {
		t.Errorf("ledger entries = %d, want split + settlement", got)
	}
	if got := len(pub.published); got != 2 {
		t.Errorf("published = %d, want split + settlement", got)
	}
}

func TestSettleParticipantUnknown(t *testing.T) {
	svc, _, _, _ := newTestService("payer@x.com", "a@x.com")
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "wifi",
		Amount:       core.Money{Cents: 4000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com"},
		Mode:         core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if _, err := svc.SettleParticipant(ctx, expense.ID, "stranger@x.com", ""); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("settle for stranger = %v, want ErrNotFound", err)
	}
	if _, err := svc.SettleParticipant(ctx, "no-such-expense", "a@x.com", ""); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("settle on missing expense = %v, want ErrNotFound", err)
	}
}

func TestMarkNonRoommateNotePaidStaysOffLedger(t *testing.T) {
	svc, _, mem, _ := newTestService("payer@x.com", "a@x.com")
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "bbq",
		Amount:       core.Money{Cents: 6000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com"},
		Mode:         core.SplitEqual,
		NonRoommateNotes: []core.NonRoommateNote{
			{Person: "visiting friend", Amount: core.Money{Cents: 1000}},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	entriesBefore := len(mem.Entries())

	updated, err := svc.MarkNonRoommateNotePaid(ctx, expense.ID, 0)
	if err != nil {
		t.Fatalf("MarkNonRoommateNotePaid failed: %v", err)
	}
	if !updated.NonRoommateNotes[0].IsPaid {
		t.Error("note should be paid")
	}
	if got := len(mem.Entries()); got != entriesBefore {
		t.Errorf("non-roommate note touched the ledger: %d entries", got)
	}

	// Re-marking is a no-op, not a conflict.
	if _, err := svc.MarkNonRoommateNotePaid(ctx, expense.ID, 0); err != nil {
		t.Errorf("re-mark = %v, want nil", err)
	}
	if _, err := svc.MarkNonRoommateNotePaid(ctx, expense.ID, 5); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("out-of-range note = %v, want ErrNotFound", err)
	}
}

func TestSettleDirect(t *testing.T) {
	svc, _, _, pub := newTestService("payer@x.com", "a@x.com")
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, CreateExpenseInput{
		Description:  "deposit",
		Amount:       core.Money{Cents: 9000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com"},
		Mode:         core.SplitCustom,
		CustomAmounts: map[core.Handle]core.Money{
			"a@x.com": {Cents: 5000},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	entry, err := svc.SettleDirect(ctx, "a@x.com", "payer@x.com", core.Money{Cents: 2000})
	if err != nil {
		t.Fatalf("SettleDirect failed: %v", err)
	}
	if entry.Kind != ledger.EntrySettlement || entry.ExpenseID != "" {
		t.Errorf("entry = %+v, want free-form settlement", entry)
	}

	pair, err := svc.Pairwise(ctx, "a@x.com", "payer@x.com")
	if err != nil {
		t.Fatalf("Pairwise failed: %v", err)
	}
	if pair.AOwesB.Cents != 3000 {
		t.Errorf("remaining debt = %d, want 3000", pair.AOwesB.Cents)
	}
	if len(pub.published) != 2 {
		t.Errorf("published = %d, want split + settlement", len(pub.published))
	}

	if _, err := svc.SettleDirect(ctx, "ghost@x.com", "payer@x.com", core.Money{Cents: 100}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SettleDirect unknown user = %v, want ErrNotFound", err)
	}
}

func TestPublisherFailureDoesNotFailCreate(t *testing.T) {
	store := newFakeStore("payer@x.com", "a@x.com")
	mem := ledger.NewInMemory()
	mem.RegisterUser("payer@x.com")
	mem.RegisterUser("a@x.com")
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, ledger.NewService(mem), pub)

	_, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		Description:  "snacks",
		Amount:       core.Money{Cents: 2000},
		Payer:        "payer@x.com",
		Participants: []core.Handle{"a@x.com"},
		Mode:         core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("CreateExpense failed on publisher error: %v", err)
	}
	if len(mem.Entries()) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(mem.Entries()))
	}
}

func TestCloseClosesComponents(t *testing.T) {
	svc, store, _, _ := newTestService("payer@x.com")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !store.closed {
		t.Error("store not closed")
	}
}
