// Package stats turns ledger transactions into per-window aggregates and trend
// series.
//
// Aggregate is a pure function. Engine fetches the inputs from a ledger.Reader
// and CachedEngine memoises Engine results per window.
package stats

import (
	"sort"

	"tally/internal/core"
)

// Aggregate folds transactions into the totals, the expense breakdown and the
// expense trend of w. Transactions outside w are ignored.
//
// The breakdown lists categories in first-encounter order. Expenses whose
// category is not in the catalog are left out of the breakdown and summed into
// Uncategorized instead. Trend slots are filled per civil day for week and
// month windows and per calendar month for year windows; all sums stay in
// cents until the final conversion to major units.
func Aggregate(w core.Window, txs []core.Transaction, catalog []core.Category) (core.Aggregate, core.Trend) {
	byID := make(map[int64]core.Category, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
	}

	var (
		expense, income, uncategorized int64
		count                          int
		order                          []int64
		perCategory                    = make(map[int64]int64)
		buckets                        = make([]int64, max(w.Buckets, 0))
	)

	for _, tx := range txs {
		if !w.Contains(tx.OccurredAt) {
			continue
		}
		count++
		cents := tx.Amount.Cents

		if tx.Kind == core.Income {
			income += cents
			continue
		}

		expense += cents
		if idx := w.BucketIndex(tx.OccurredAt); idx >= 0 {
			buckets[idx] += cents
		}
		if _, known := byID[tx.CategoryID]; !known {
			uncategorized += cents
			continue
		}
		if _, seen := perCategory[tx.CategoryID]; !seen {
			order = append(order, tx.CategoryID)
		}
		perCategory[tx.CategoryID] += cents
	}

	breakdown := make([]core.CategoryAmount, 0, len(order))
	for _, id := range order {
		c := byID[id]
		breakdown = append(breakdown, core.CategoryAmount{
			CategoryID: id,
			Name:       c.Name,
			Color:      c.DisplayColor(),
			Amount:     core.Money{Cents: perCategory[id]},
		})
	}

	trend := make(core.Trend, len(buckets))
	for i, cents := range buckets {
		trend[i] = core.Money{Cents: cents}.Major()
	}

	totalExpense, totalIncome := core.Money{Cents: expense}, core.Money{Cents: income}
	return core.Aggregate{
		Year:          w.Year(),
		PeriodOrdinal: w.Ordinal(),
		TotalExpense:  totalExpense,
		TotalIncome:   totalIncome,
		Balance:       totalIncome.Sub(totalExpense),
		Breakdown:     breakdown,
		Uncategorized: core.Money{Cents: uncategorized},
		Count:         count,
	}, trend
}

// SortedBreakdown returns a copy of b ordered by amount, largest first, with
// ties broken by category ID.
func SortedBreakdown(b []core.CategoryAmount) []core.CategoryAmount {
	out := append([]core.CategoryAmount(nil), b...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}
