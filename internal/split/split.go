// Package split computes deterministic per-participant obligations for a
// shared expense. The computation is pure: identical input always yields an
// identical plan, and nothing here touches storage or the ledger.
package split

import (
	"fmt"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

// Input describes an expense to be divided.
type Input struct {
	Amount       core.Money
	Payer        core.Handle
	Participants []core.Handle // excludes the payer, no duplicates
	Mode         core.SplitMode

	// CustomAmounts supplies one amount per participant in custom mode.
	// Ignored in equal mode.
	CustomAmounts map[core.Handle]core.Money
}

// Payment is one participant's computed obligation toward the payer.
type Payment struct {
	Participant core.Handle
	Amount      core.Money
}

// Plan is the result of dividing an expense. Payments preserve the input
// participant order for stable display and testing.
type Plan struct {
	TotalParticipants int // headcount including the payer

	// PerParticipant is the uniform equal-mode share; zero in custom mode.
	PerParticipant core.Money

	Payments []Payment
}

// Compute derives the split plan for an expense.
//
// Equal mode divides the amount by headcount (participants plus the payer)
// with truncating cent division; the payer absorbs the remainder, which is
// not redistributed. The payer's own share is implicit and never recorded
// as a debt to themselves.
//
// Custom mode takes each participant's amount as supplied. Every participant
// must have a non-negative amount, and the custom amounts must not sum past
// the expense total; violations are validation errors, never corrected
// silently.
func Compute(in Input) (Plan, error) {
	if err := in.Amount.Validate(); err != nil {
		return Plan{}, err
	}
	if err := in.Payer.Validate(); err != nil {
		return Plan{}, fmt.Errorf("payer: %w", err)
	}
	if len(in.Participants) == 0 {
		return Plan{}, core.ErrNoParticipants
	}
	seen := make(map[core.Handle]struct{}, len(in.Participants))
	for _, p := range in.Participants {
		if err := p.Validate(); err != nil {
			return Plan{}, fmt.Errorf("participant: %w", err)
		}
		if p == in.Payer {
			return Plan{}, fmt.Errorf("%w: %s", core.ErrPayerIsParticipant, p)
		}
		if _, dup := seen[p]; dup {
			return Plan{}, fmt.Errorf("%w: %s", core.ErrDuplicateParticipant, p)
		}
		seen[p] = struct{}{}
	}

	switch in.Mode {
	case core.SplitEqual:
		return computeEqual(in)
	case core.SplitCustom:
		return computeCustom(in)
	default:
		return Plan{}, fmt.Errorf("%w: %q", core.ErrInvalidSplitMode, string(in.Mode))
	}
}

func computeEqual(in Input) (Plan, error) {
	headcount := len(in.Participants) + 1
	share := in.Amount.DivideBy(headcount)

	plan := Plan{
		TotalParticipants: headcount,
		PerParticipant:    share,
		Payments:          make([]Payment, 0, len(in.Participants)),
	}
	for _, p := range in.Participants {
		plan.Payments = append(plan.Payments, Payment{Participant: p, Amount: share})
	}
	return plan, nil
}

func computeCustom(in Input) (Plan, error) {
	plan := Plan{
		TotalParticipants: len(in.Participants) + 1,
		Payments:          make([]Payment, 0, len(in.Participants)),
	}

	var sum int64
	for _, p := range in.Participants {
		amount, ok := in.CustomAmounts[p]
		if !ok {
			return Plan{}, fmt.Errorf("%w: %s", core.ErrMissingCustomAmount, p)
		}
		if amount.IsNegative() {
			return Plan{}, fmt.Errorf("%w: negative custom amount for %s", core.ErrInvalidAmount, p)
		}
		sum += amount.Cents
		plan.Payments = append(plan.Payments, Payment{Participant: p, Amount: amount})
	}
	if sum > in.Amount.Cents {
		return Plan{}, fmt.Errorf("%w: %d > %d cents", core.ErrCustomExceedsTotal, sum, in.Amount.Cents)
	}
	return plan, nil
}

// Shares converts the plan's payments into payment-status entries for
// embedding into an expense at creation time.
func (p Plan) Shares() []core.ParticipantShare {
	shares := make([]core.ParticipantShare, 0, len(p.Payments))
	for _, pay := range p.Payments {
		shares = append(shares, core.ParticipantShare{
			Participant: pay.Participant,
			Owed:        pay.Amount,
		})
	}
	return shares
}
