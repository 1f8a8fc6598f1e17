// Package sheets defines the outbound port for ledger entry export.
package sheets

import (
	"context"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
)

// EntryWriter appends a ledger entry to the export target and returns a
// reference to the written row.
type EntryWriter interface {
	Append(ctx context.Context, e ledger.Entry) (rowRef string, err error)
}
