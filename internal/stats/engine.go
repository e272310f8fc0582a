package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"
	"tally/internal/period"
)

// ErrLedgerQuery wraps every failure reported by the ledger.
var ErrLedgerQuery = errors.New("ledger query failed")

// Engine computes snapshots straight from a ledger.
type Engine struct {
	ledger   ledger.Reader
	resolver *period.Resolver
	logger   *log.Logger
}

func NewEngine(r ledger.Reader, resolver *period.Resolver, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		ledger:   r,
		resolver: resolver,
		logger:   logger.WithComponent(log.ComponentStats),
	}
}

// Resolver returns the resolver used to turn kinds into windows.
func (e *Engine) Resolver() *period.Resolver {
	return e.resolver
}

// Compute resolves the window of kind containing ref and aggregates it. Either
// a complete snapshot is returned or an error; never a partial result.
func (e *Engine) Compute(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error) {
	w, err := e.resolver.Resolve(kind, ref)
	if err != nil {
		return core.Snapshot{}, err
	}
	return e.ComputeWindow(ctx, w)
}

// ComputeWindow aggregates an already resolved window. Transactions and the
// catalog are fetched concurrently.
func (e *Engine) ComputeWindow(ctx context.Context, w core.Window) (core.Snapshot, error) {
	start := time.Now()

	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = e.ledger.TransactionsInRange(gctx, w.Start, w.End)
		if err != nil {
			return fmt.Errorf("transactions in range: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cats, err = e.ledger.Categories(gctx)
		if err != nil {
			return fmt.Errorf("categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		e.logger.WarnContext(ctx, "Ledger read failed", log.NewFields().
			WithWindow(w.Label(), w.Start, w.End).
			WithOperation(log.OpCompute).
			WithError(err).
			ToSlice()...)
		return core.Snapshot{}, fmt.Errorf("%w: %w", ErrLedgerQuery, err)
	}

	agg, trend := Aggregate(w, txs, cats)
	e.logger.DebugContext(ctx, "Window aggregated", log.NewFields().
		WithWindow(w.Label(), w.Start, w.End).
		WithTotals(agg.TotalExpense.Cents, agg.TotalIncome.Cents).
		ToSlice()...,
	)
	e.logger.DebugContext(ctx, "Aggregation timing", log.FieldDuration, time.Since(start).Milliseconds(), log.FieldCount, agg.Count)

	return core.Snapshot{Window: w, Aggregate: agg, Trend: trend}, nil
}

// Compare contrasts the window of kind containing ref with the window before it,
// using the ledger's own totals. A window before the supported range compares
// against zero.
func (e *Engine) Compare(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Comparison, error) {
	cur, err := e.resolver.Resolve(kind, ref)
	if err != nil {
		return core.Comparison{}, err
	}
	prev, prevErr := e.resolver.Previous(cur)

	cmp := core.Comparison{Current: cur, Previous: prev}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.totals(gctx, cur, &cmp.Expense, &cmp.Income, &cmp.ByCategory)
	})
	if prevErr == nil {
		g.Go(func() error {
			return e.totals(gctx, prev, &cmp.PrevExpense, &cmp.PrevIncome, &cmp.PrevCategory)
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.WarnContext(ctx, "Comparison failed", log.NewFields().
			WithWindow(cur.Label(), cur.Start, cur.End).
			WithOperation(log.OpCompare).
			WithError(err).
			ToSlice()...)
		return core.Comparison{}, fmt.Errorf("%w: %w", ErrLedgerQuery, err)
	}
	return cmp, nil
}

func (e *Engine) totals(ctx context.Context, w core.Window, expense, income *core.Money, byCategory *[]core.CategoryAmount) error {
	var err error
	if *expense, err = e.ledger.TotalExpense(ctx, w.Start, w.End); err != nil {
		return fmt.Errorf("total expense %s: %w", w.Label(), err)
	}
	if *income, err = e.ledger.TotalIncome(ctx, w.Start, w.End); err != nil {
		return fmt.Errorf("total income %s: %w", w.Label(), err)
	}
	if *byCategory, err = e.ledger.CategoryTotals(ctx, w.Start, w.End); err != nil {
		return fmt.Errorf("category totals %s: %w", w.Label(), err)
	}
	return nil
}
