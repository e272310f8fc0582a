package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CategoryAmount is the expense total of one category inside a window.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Color      string
	Amount     Money
}

// Aggregate summarises a window. Balance may be negative.
type Aggregate struct {
	Year          int
	PeriodOrdinal int
	TotalExpense  Money
	TotalIncome   Money
	Balance       Money
	Breakdown     []CategoryAmount
	// Uncategorized holds expenses whose category is missing from the catalog.
	// They count towards TotalExpense but have no breakdown entry.
	Uncategorized Money
	Count         int
}

// Clone returns a deep copy.
func (a Aggregate) Clone() Aggregate {
	out := a
	if a.Breakdown != nil {
		out.Breakdown = append([]CategoryAmount(nil), a.Breakdown...)
	}
	return out
}

// Trend holds one major-unit expense value per window bucket.
type Trend []float64

func (t Trend) Clone() Trend {
	if t == nil {
		return nil
	}
	return append(Trend(nil), t...)
}

// Snapshot pairs an aggregate with its trend for one window.
type Snapshot struct {
	Window    Window
	Aggregate Aggregate
	Trend     Trend
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Window:    s.Window,
		Aggregate: s.Aggregate.Clone(),
		Trend:     s.Trend.Clone(),
	}
}

// Fingerprint hashes the values of the snapshot. Two snapshots of the same window
// with the same figures share a fingerprint.
func (s Snapshot) Fingerprint() string {
	type entry struct {
		ID    int64 `json:"id"`
		Cents int64 `json:"c"`
	}
	payload := struct {
		Label     string    `json:"l"`
		Expense   int64     `json:"e"`
		Income    int64     `json:"i"`
		Uncat     int64     `json:"u"`
		Breakdown []entry   `json:"b"`
		Trend     []float64 `json:"t"`
	}{
		Label:   s.Window.Label(),
		Expense: s.Aggregate.TotalExpense.Cents,
		Income:  s.Aggregate.TotalIncome.Cents,
		Uncat:   s.Aggregate.Uncategorized.Cents,
		Trend:   s.Trend,
	}
	for _, b := range s.Aggregate.Breakdown {
		payload.Breakdown = append(payload.Breakdown, entry{ID: b.CategoryID, Cents: b.Amount.Cents})
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// Comparison contrasts a window with the one before it.
type Comparison struct {
	Current      Window
	Previous     Window
	Expense      Money
	PrevExpense  Money
	Income       Money
	PrevIncome   Money
	ByCategory   []CategoryAmount
	PrevCategory []CategoryAmount
}

// ExpenseDeltaPercent returns the change of expenses relative to the previous
// window, and false when the previous window had none.
func (c Comparison) ExpenseDeltaPercent() (float64, bool) {
	if c.PrevExpense.Cents == 0 {
		return 0, false
	}
	return float64(c.Expense.Cents-c.PrevExpense.Cents) / float64(c.PrevExpense.Cents) * 100, true
}
