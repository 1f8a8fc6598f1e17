package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseHandle(t *testing.T) {
	cases := []struct {
		in   string
		want Handle
		ok   bool
	}{
		{"alice@example.com", "alice@example.com", true},
		{" Bob@Example.COM ", "bob@example.com", true},
		{"", "", false},
		{"no-at-sign", "", false},
		{"@example.com", "", false},
		{"alice@", "", false},
		{"a b@example.com", "", false},
	}
	for _, tc := range cases {
		got, err := ParseHandle(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseHandle(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
			}
		} else if err == nil {
			t.Fatalf("ParseHandle(%q) expected error", tc.in)
		}
	}
}

func validExpense() Expense {
	return Expense{
		ID:           "e1",
		Description:  "groceries",
		Amount:       Money{Cents: 9000},
		Payer:        "p@x.com",
		SplitMode:    SplitEqual,
		Participants: []Handle{"a@x.com", "b@x.com"},
		PaymentStatus: []ParticipantShare{
			{Participant: "a@x.com", Owed: Money{Cents: 3000}},
			{Participant: "b@x.com", Owed: Money{Cents: 3000}},
		},
	}
}

func TestExpenseValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Expense)
		wantErr error
	}{
		{"valid", func(e *Expense) {}, nil},
		{"empty description", func(e *Expense) { e.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{"payer participates", func(e *Expense) { e.Participants = []Handle{"p@x.com"} }, ErrPayerIsParticipant},
		{"duplicate participant", func(e *Expense) { e.Participants = []Handle{"a@x.com", "a@x.com"} }, ErrDuplicateParticipant},
		{"bad split mode", func(e *Expense) { e.SplitMode = "halfsies" }, ErrInvalidSplitMode},
		{"description too long", func(e *Expense) {
			e.Description = strings.Repeat("x", 201)
		}, ErrDescriptionTooLong},
		{"note without person", func(e *Expense) {
			e.NonRoommateNotes = []NonRoommateNote{{Person: " ", Amount: Money{Cents: 100}}}
		}, ErrEmptyNotePerson},
		{"owed exceeds total", func(e *Expense) {
			e.PaymentStatus[0].Owed = Money{Cents: 8000}
		}, ErrCustomExceedsTotal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExpense()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if !IsValidation(err) {
				t.Fatalf("Validate() error %v not classified as validation", err)
			}
		})
	}
}

func TestMarkParticipantPaid(t *testing.T) {
	e := validExpense()
	now := time.Now()

	share, err := e.MarkParticipantPaid("a@x.com", "venmo", now)
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if !share.IsPaid || !share.PaidAt.Equal(now) || share.Notes != "venmo" {
		t.Fatalf("share not updated: %+v", share)
	}

	// One-way transition: the second call must conflict and mutate nothing.
	if _, err := e.MarkParticipantPaid("a@x.com", "", now); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("second mark: got %v, want ErrAlreadyPaid", err)
	}

	if _, err := e.MarkParticipantPaid("stranger@x.com", "", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown participant: got %v, want ErrNotFound", err)
	}
}

func TestMarkNotePaid(t *testing.T) {
	e := validExpense()
	e.NonRoommateNotes = []NonRoommateNote{
		{Person: "landlord", Amount: Money{Cents: 500}, Description: "key copy"},
	}
	now := time.Now()

	note, err := e.MarkNotePaid(0, now)
	if err != nil || !note.IsPaid {
		t.Fatalf("mark note: %v, paid=%v", err, note.IsPaid)
	}
	// Idempotent: re-marking keeps the original timestamp.
	again, err := e.MarkNotePaid(0, now.Add(time.Hour))
	if err != nil || !again.PaidAt.Equal(now) {
		t.Fatalf("re-mark note: %v, paidAt=%v", err, again.PaidAt)
	}
	if _, err := e.MarkNotePaid(5, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("out of range: got %v, want ErrNotFound", err)
	}
}
