package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
)

func day(d int) time.Time {
	return time.Date(2025, 10, d, 12, 0, 0, 0, time.UTC)
}

func TestMemoryStoreAppendAndTotals(t *testing.T) {
	ctx := context.Background()
	s := New([]core.Category{{ID: 1, Name: "Food"}, {ID: 2, Name: "Rent"}, {ID: 1, Name: "dup"}}, nil)

	cats, err := s.Categories(ctx)
	if err != nil || len(cats) != 2 || cats[0].Name != "Food" {
		t.Fatalf("unexpected categories: %v err=%v", cats, err)
	}

	for _, tx := range []core.Transaction{
		{Amount: core.Money{Cents: 500}, Kind: core.Expense, CategoryID: 1, OccurredAt: day(1)},
		{Amount: core.Money{Cents: 300}, Kind: core.Expense, CategoryID: 2, OccurredAt: day(2)},
		{Amount: core.Money{Cents: 300}, Kind: core.Expense, CategoryID: 1, OccurredAt: day(3)},
		{Amount: core.Money{Cents: 1000}, Kind: core.Income, OccurredAt: day(4)},
		{Amount: core.Money{Cents: 999}, Kind: core.Expense, CategoryID: 1, OccurredAt: day(20)},
	} {
		if _, err := s.Append(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.Append(ctx, core.Transaction{Amount: core.Money{Cents: -1}, Kind: core.Expense, CategoryID: 1, OccurredAt: day(1)}); err == nil {
		t.Fatalf("expected validation error")
	}

	start, end := day(1), day(10)
	exp, _ := s.TotalExpense(ctx, start, end)
	inc, _ := s.TotalIncome(ctx, start, end)
	if exp.Cents != 1100 || inc.Cents != 1000 {
		t.Fatalf("unexpected totals: expense=%d income=%d", exp.Cents, inc.Cents)
	}

	txs, _ := s.TransactionsInRange(ctx, start, end)
	if len(txs) != 4 || txs[0].ID != 1 || txs[3].ID != 4 {
		t.Fatalf("unexpected range result: %+v", txs)
	}

	totals, _ := s.CategoryTotals(ctx, start, end)
	if len(totals) != 2 || totals[0].CategoryID != 1 || totals[0].Amount.Cents != 800 || totals[0].Name != "Food" {
		t.Fatalf("unexpected category totals: %+v", totals)
	}
	if want := (core.Category{Name: "Food"}).DisplayColor(); totals[0].Color != want {
		t.Errorf("uncolored category: got color %q, want %q", totals[0].Color, want)
	}
}

func TestMemoryStoreTruncatesToMillis(t *testing.T) {
	ctx := context.Background()
	weekEnd := time.Date(2025, 10, 19, 23, 59, 59, 999_000_000, time.UTC)
	s := New(nil, []core.Transaction{
		{Amount: core.Money{Cents: 100}, Kind: core.Expense, CategoryID: 1, OccurredAt: weekEnd.Add(300 * time.Microsecond)},
	})
	got, err := s.Append(ctx, core.Transaction{Amount: core.Money{Cents: 200}, Kind: core.Expense, CategoryID: 1, OccurredAt: weekEnd.Add(999 * time.Microsecond)})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !got.OccurredAt.Equal(weekEnd) {
		t.Errorf("append kept sub-millisecond time %v", got.OccurredAt)
	}

	exp, _ := s.TotalExpense(ctx, weekEnd.Add(-time.Hour), weekEnd)
	if exp.Cents != 300 {
		t.Fatalf("expected both rows inside the window ending %v, got %d", weekEnd, exp.Cents)
	}
	next, _ := s.TotalExpense(ctx, weekEnd.Add(time.Millisecond), weekEnd.Add(time.Hour))
	if next.Cents != 0 {
		t.Fatalf("rows leaked into the following window: %d", next.Cents)
	}
}

func TestMemoryStoreUpsertCategory(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	if err := s.UpsertCategory(ctx, core.Category{ID: 1, Name: "Food"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCategory(ctx, core.Category{ID: 1, Name: "Groceries", Color: "#00FF00"}); err != nil {
		t.Fatal(err)
	}
	cats, _ := s.Categories(ctx)
	if len(cats) != 1 || cats[0].Name != "Groceries" {
		t.Fatalf("unexpected categories: %+v", cats)
	}
	if err := s.UpsertCategory(ctx, core.Category{ID: 2}); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil, nil).TransactionsInRange(ctx, day(1), day(2)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir, time.UTC)
	if err != nil {
		t.Fatalf("missing files should not fail: %v", err)
	}
	if cats, _ := s.Categories(context.Background()); len(cats) != 0 {
		t.Fatalf("expected empty catalog")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("categories.csv", "id,name,color\n1,Food,#FF0000\n2,Rent,\n")
	mustWrite("transactions.csv", "date,kind,amount,category_id,account_id,note\n2025-10-01,expense,5.00,1,1,lunch\n2025-10-02,,-3,2,1,\n")

	s, err = NewFromFiles(dir, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exp, _ := s.TotalExpense(context.Background(), day(1).Add(-24*time.Hour), day(31))
	if exp.Cents != 800 {
		t.Fatalf("expected 800, got %d", exp.Cents)
	}

	mustWrite("transactions.csv", "date,kind,amount,category_id,account_id,note\nnot-a-date,expense,5,1,1,\n")
	if _, err := NewFromFiles(dir, time.UTC); err == nil {
		t.Fatalf("expected parse error")
	}
}
