package core

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

const (
	Expense Kind = iota
	Income
)

type (
	// Kind tells whether a transaction takes money out of or brings money into an account.
	Kind int

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID         int64
		Amount     Money
		Kind       Kind
		CategoryID int64
		AccountID  int64
		OccurredAt time.Time // whole milliseconds, see TruncateMillis
		Note       string
	}

	Category struct {
		ID    int64
		Name  string
		Color string // optional "#RRGGBB" hint
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrMissingDate     = errors.New("missing transaction date")
	ErrMissingCategory = errors.New("missing category")
	ErrEmptyName       = errors.New("empty category name")
)

// palette backs DisplayColor for categories without a color hint.
var palette = []string{
	"#6750A4", "#E8590C", "#2F9E44", "#1971C2", "#C2255C",
	"#F08C00", "#0C8599", "#7048E8", "#5C940D", "#D6336C",
	"#3B5BDB", "#A61E4D",
}

func (k Kind) String() string {
	switch k {
	case Expense:
		return "expense"
	case Income:
		return "income"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TruncateMillis drops sub-millisecond precision. Ledgers store instants as
// epoch milliseconds, so every backend truncates on the way in.
func TruncateMillis(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}

func (k Kind) IsValid() bool {
	return k == Expense || k == Income
}

// ParseKind accepts "expense"/"income" in any case, plus the short forms "e"/"i".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "e", "out":
		return Expense, nil
	case "income", "i", "in":
		return Income, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Validate rejects negative amounts. Zero is a legal ledger amount.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}
	if t.OccurredAt.IsZero() {
		return ErrMissingDate
	}
	if t.Kind == Expense && t.CategoryID == 0 {
		return ErrMissingCategory
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// DisplayColor returns the color hint, or a stable palette color picked from the name.
func (c Category) DisplayColor() string {
	if c.Color != "" {
		return c.Color
	}
	h := fnv.New32a()
	h.Write([]byte(c.Name))
	return palette[h.Sum32()%uint32(len(palette))]
}
