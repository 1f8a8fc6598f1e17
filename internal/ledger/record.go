package ledger

import (
	"fmt"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

// BalanceRecord is one user's side of the ledger: a signed amount per
// counterparty plus incrementally maintained totals. Positive means the
// counterparty owes the owner; negative means the owner owes them.
//
// Records are created lazily on first transaction and mutated only through
// ledger operations, never directly.
type BalanceRecord struct {
	Owner          core.Handle
	Counterparties map[core.Handle]core.Money

	// TotalOwedToOwner is the sum of positive counterparty amounts,
	// TotalOwedByOwner the sum of magnitudes of negative ones. Both are
	// maintained incrementally and must always match the map contents.
	TotalOwedToOwner core.Money
	TotalOwedByOwner core.Money
}

// NewBalanceRecord returns an empty record for the given owner.
func NewBalanceRecord(owner core.Handle) *BalanceRecord {
	return &BalanceRecord{
		Owner:          owner,
		Counterparties: make(map[core.Handle]core.Money),
	}
}

// apply shifts the balance against one counterparty by delta cents and keeps
// the incremental totals in step. A balance that lands on exactly zero is
// pruned from the map; pruning is cosmetic and does not affect invariants.
func (r *BalanceRecord) apply(counterparty core.Handle, delta core.Money) {
	before := r.Counterparties[counterparty]
	after := before.Add(delta)

	if before.IsPositive() {
		r.TotalOwedToOwner = r.TotalOwedToOwner.Sub(before)
	} else if before.IsNegative() {
		r.TotalOwedByOwner = r.TotalOwedByOwner.Sub(before.Abs())
	}
	if after.IsPositive() {
		r.TotalOwedToOwner = r.TotalOwedToOwner.Add(after)
	} else if after.IsNegative() {
		r.TotalOwedByOwner = r.TotalOwedByOwner.Add(after.Abs())
	}

	if after.IsZero() {
		delete(r.Counterparties, counterparty)
		return
	}
	r.Counterparties[counterparty] = after
}

// Clone returns a deep copy safe to hand across the package boundary.
func (r *BalanceRecord) Clone() *BalanceRecord {
	out := NewBalanceRecord(r.Owner)
	out.TotalOwedToOwner = r.TotalOwedToOwner
	out.TotalOwedByOwner = r.TotalOwedByOwner
	for k, v := range r.Counterparties {
		out.Counterparties[k] = v
	}
	return out
}

// CheckInvariants recomputes the totals from the counterparty map and
// compares them with the incrementally maintained values. A mismatch is a
// bug in ledger bookkeeping, never an expected runtime condition; this is
// exercised by tests after every operation.
func (r *BalanceRecord) CheckInvariants() error {
	var owed, owing int64
	for cp, amount := range r.Counterparties {
		if amount.IsZero() {
			return fmt.Errorf("ledger invariant: record %s holds a zero entry for %s", r.Owner, cp)
		}
		if amount.IsPositive() {
			owed += amount.Cents
		} else {
			owing += -amount.Cents
		}
	}
	if owed != r.TotalOwedToOwner.Cents {
		return fmt.Errorf("ledger invariant: record %s total owed %d != recomputed %d",
			r.Owner, r.TotalOwedToOwner.Cents, owed)
	}
	if owing != r.TotalOwedByOwner.Cents {
		return fmt.Errorf("ledger invariant: record %s total owing %d != recomputed %d",
			r.Owner, r.TotalOwedByOwner.Cents, owing)
	}
	return nil
}
