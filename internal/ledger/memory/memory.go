package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Store is an in-process ledger. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	cats   []core.Category
	items  []core.Transaction
	nextID int64
}

var _ ledger.Store = (*Store)(nil)

func New(cats []core.Category, txs []core.Transaction) *Store {
	s := &Store{cats: dedupeCategories(cats)}
	for _, tx := range txs {
		s.nextID++
		if tx.ID == 0 {
			tx.ID = s.nextID
		}
		tx.OccurredAt = core.TruncateMillis(tx.OccurredAt)
		s.items = append(s.items, tx)
	}
	return s
}

// NewFromFiles seeds the store from categories.csv and transactions.csv in base.
// Missing files give an empty catalog or ledger; malformed files are an error.
func NewFromFiles(base string, loc *time.Location) (*Store, error) {
	var (
		cats []core.Category
		txs  []core.Transaction
	)
	if f, err := os.Open(filepath.Join(base, "categories.csv")); err == nil {
		cats, err = ledger.ReadCategories(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("seed categories: %w", err)
		}
	}
	if f, err := os.Open(filepath.Join(base, "transactions.csv")); err == nil {
		txs, err = ledger.ReadTransactions(f, loc)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("seed transactions: %w", err)
		}
	}
	return New(cats, txs), nil
}

// Append stores the transaction and assigns it an ID.
func (s *Store) Append(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	tx.OccurredAt = core.TruncateMillis(tx.OccurredAt)
	s.items = append(s.items, tx)
	return tx, nil
}

// UpsertCategory inserts or replaces a category by ID.
func (s *Store) UpsertCategory(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats {
		if s.cats[i].ID == c.ID {
			s.cats[i] = c
			return nil
		}
	}
	s.cats = append(s.cats, c)
	return nil
}

// TransactionsInRange returns transactions in insertion order.
func (s *Store) TransactionsInRange(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if inRange(tx.OccurredAt, start, end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) TotalExpense(ctx context.Context, start, end time.Time) (core.Money, error) {
	return s.total(ctx, core.Expense, start, end)
}

func (s *Store) TotalIncome(ctx context.Context, start, end time.Time) (core.Money, error) {
	return s.total(ctx, core.Income, start, end)
}

func (s *Store) total(ctx context.Context, kind core.Kind, start, end time.Time) (core.Money, error) {
	if err := ctx.Err(); err != nil {
		return core.Money{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum core.Money
	for _, tx := range s.items {
		if tx.Kind == kind && inRange(tx.OccurredAt, start, end) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

// CategoryTotals groups expenses by category. Categories missing from the
// catalog are reported with an empty name.
func (s *Store) CategoryTotals(ctx context.Context, start, end time.Time) ([]core.CategoryAmount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[int64]int64)
	for _, tx := range s.items {
		if tx.Kind == core.Expense && inRange(tx.OccurredAt, start, end) {
			byID[tx.CategoryID] += tx.Amount.Cents
		}
	}
	names := make(map[int64]core.Category, len(s.cats))
	for _, c := range s.cats {
		names[c.ID] = c
	}

	out := make([]core.CategoryAmount, 0, len(byID))
	for id, cents := range byID {
		c := names[id]
		out = append(out, core.CategoryAmount{CategoryID: id, Name: c.Name, Color: c.DisplayColor(), Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *Store) Categories(ctx context.Context) ([]core.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func dedupeCategories(in []core.Category) []core.Category {
	seen := map[int64]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
