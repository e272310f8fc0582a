// Package ledger defines the read and write ports of the transaction ledger and
// the CSV format used to seed and import it.
package ledger

import (
	"context"
	"time"

	"tally/internal/core"
)

// Ports for ledger backends. Every range is closed: [start, end].
type (
	Reader interface {
		TransactionsInRange(ctx context.Context, start, end time.Time) ([]core.Transaction, error)
		TotalExpense(ctx context.Context, start, end time.Time) (core.Money, error)
		TotalIncome(ctx context.Context, start, end time.Time) (core.Money, error)
		// CategoryTotals returns expense totals per category, largest first.
		CategoryTotals(ctx context.Context, start, end time.Time) ([]core.CategoryAmount, error)
		Categories(ctx context.Context) ([]core.Category, error)
	}

	Writer interface {
		// Append stores the transaction and returns it with its assigned ID.
		Append(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpsertCategory(ctx context.Context, c core.Category) error
	}

	Store interface {
		Reader
		Writer
	}
)
