package split

import (
	"errors"
	"testing"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestComputeEqual(t *testing.T) {
	tests := []struct {
		name         string
		amount       int64
		participants []core.Handle
		wantShare    int64
		wantHead     int
	}{
		{
			// 900.00 across payer + a + b
			name:         "three way even",
			amount:       90000,
			participants: []core.Handle{"a@x.com", "b@x.com"},
			wantShare:    30000,
			wantHead:     3,
		},
		{
			name:         "two way",
			amount:       5000,
			participants: []core.Handle{"a@x.com"},
			wantShare:    2500,
			wantHead:     2,
		},
		{
			// 1.00 across three heads: 33 each, payer absorbs the 1 cent.
			name:         "remainder stays with payer",
			amount:       100,
			participants: []core.Handle{"a@x.com", "b@x.com"},
			wantShare:    33,
			wantHead:     3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Compute(Input{
				Amount:       money(tt.amount),
				Payer:        "p@x.com",
				Participants: tt.participants,
				Mode:         core.SplitEqual,
			})
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if plan.TotalParticipants != tt.wantHead {
				t.Errorf("TotalParticipants = %d, want %d", plan.TotalParticipants, tt.wantHead)
			}
			if plan.PerParticipant.Cents != tt.wantShare {
				t.Errorf("PerParticipant = %d, want %d", plan.PerParticipant.Cents, tt.wantShare)
			}
			if len(plan.Payments) != len(tt.participants) {
				t.Fatalf("payments = %d, want %d", len(plan.Payments), len(tt.participants))
			}
			for i, p := range plan.Payments {
				if p.Participant != tt.participants[i] {
					t.Errorf("payments[%d] = %s, want %s (order must follow input)", i, p.Participant, tt.participants[i])
				}
				if p.Amount.Cents != tt.wantShare {
					t.Errorf("payments[%d].Amount = %d, want %d", i, p.Amount.Cents, tt.wantShare)
				}
			}
		})
	}
}

func TestComputeCustom(t *testing.T) {
	plan, err := Compute(Input{
		Amount:       money(10000),
		Payer:        "p@x.com",
		Participants: []core.Handle{"a@x.com", "b@x.com"},
		Mode:         core.SplitCustom,
		CustomAmounts: map[core.Handle]core.Money{
			"a@x.com": money(6000),
			"b@x.com": money(2500),
		},
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !plan.PerParticipant.IsZero() {
		t.Errorf("PerParticipant = %v, want zero sentinel in custom mode", plan.PerParticipant)
	}
	if plan.Payments[0].Amount.Cents != 6000 || plan.Payments[1].Amount.Cents != 2500 {
		t.Errorf("payments = %+v", plan.Payments)
	}
}

func TestComputeValidation(t *testing.T) {
	base := func() Input {
		return Input{
			Amount:       money(10000),
			Payer:        "p@x.com",
			Participants: []core.Handle{"a@x.com", "b@x.com"},
			Mode:         core.SplitEqual,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr error
	}{
		{"zero amount", func(in *Input) { in.Amount = money(0) }, core.ErrInvalidAmount},
		{"no participants", func(in *Input) { in.Participants = nil }, core.ErrNoParticipants},
		{"payer included", func(in *Input) { in.Participants = []core.Handle{"p@x.com"} }, core.ErrPayerIsParticipant},
		{"duplicate", func(in *Input) { in.Participants = []core.Handle{"a@x.com", "a@x.com"} }, core.ErrDuplicateParticipant},
		{"unknown mode", func(in *Input) { in.Mode = "thirds" }, core.ErrInvalidSplitMode},
		{
			// 60 + 60 > 100: never corrected silently.
			"custom exceeds total",
			func(in *Input) {
				in.Mode = core.SplitCustom
				in.CustomAmounts = map[core.Handle]core.Money{
					"a@x.com": money(6000),
					"b@x.com": money(6000),
				}
			},
			core.ErrCustomExceedsTotal,
		},
		{
			"custom missing participant",
			func(in *Input) {
				in.Mode = core.SplitCustom
				in.CustomAmounts = map[core.Handle]core.Money{"a@x.com": money(1000)}
			},
			core.ErrMissingCustomAmount,
		},
		{
			"custom negative amount",
			func(in *Input) {
				in.Mode = core.SplitCustom
				in.CustomAmounts = map[core.Handle]core.Money{
					"a@x.com": money(-100),
					"b@x.com": money(100),
				}
			},
			core.ErrInvalidAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)
			if _, err := Compute(in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeIsReferentiallyTransparent(t *testing.T) {
	in := Input{
		Amount:       money(90000),
		Payer:        "p@x.com",
		Participants: []core.Handle{"a@x.com", "b@x.com"},
		Mode:         core.SplitEqual,
	}
	first, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Compute(in)
		if err != nil {
			t.Fatal(err)
		}
		if len(again.Payments) != len(first.Payments) {
			t.Fatal("payment count changed between identical calls")
		}
		for j := range again.Payments {
			if again.Payments[j] != first.Payments[j] {
				t.Fatalf("payment %d changed between identical calls", j)
			}
		}
	}
}
