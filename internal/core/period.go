package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Week  PeriodKind = "week"
	Month PeriodKind = "month"
	Year  PeriodKind = "year"
)

// PeriodKind selects the calendar granularity of a statistics window.
type PeriodKind string

// PeriodKinds lists the supported kinds in display order.
var PeriodKinds = []PeriodKind{Week, Month, Year}

func (k PeriodKind) IsValid() bool {
	switch k {
	case Week, Month, Year:
		return true
	}
	return false
}

// ParsePeriodKind normalises user input. Unknown values are returned as-is and
// fail IsValid, so callers decide which error to raise.
func ParsePeriodKind(s string) PeriodKind {
	return PeriodKind(strings.ToLower(strings.TrimSpace(s)))
}

// Window is a resolved, closed calendar interval [Start, End] split into Buckets
// trend slots. Start and End carry the location the window was resolved in.
type Window struct {
	Kind    PeriodKind
	Start   time.Time
	End     time.Time
	Buckets int
}

func (w Window) IsZero() bool {
	return w.Kind == "" && w.Start.IsZero()
}

// Contains reports whether t falls inside [Start, End]. End is the last whole
// millisecond of the window, so any instant within that millisecond counts.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End.Add(time.Millisecond))
}

// BucketIndex maps t to its trend slot: the civil-day offset from Start for week
// and month windows, the month offset for year windows. Anything outside
// [0, Buckets) yields -1.
func (w Window) BucketIndex(t time.Time) int {
	if !w.Contains(t) {
		return -1
	}
	local := t.In(w.Start.Location())

	var idx int
	switch w.Kind {
	case Year:
		idx = int(local.Month()) - int(w.Start.Month())
	default:
		idx = civilDays(w.Start, local)
	}
	if idx < 0 || idx >= w.Buckets {
		return -1
	}
	return idx
}

// civilDays counts calendar days between a and b by their wall-clock dates, so
// that 23h and 25h DST days still count as one.
func civilDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Year returns the year the window belongs to. Week windows report the ISO year.
func (w Window) Year() int {
	if w.Kind == Week {
		y, _ := w.Start.ISOWeek()
		return y
	}
	return w.Start.Year()
}

// Ordinal returns the ISO week number, the month number, or 12 for year windows.
func (w Window) Ordinal() int {
	switch w.Kind {
	case Week:
		_, wk := w.Start.ISOWeek()
		return wk
	case Month:
		return int(w.Start.Month())
	case Year:
		return 12
	}
	return 0
}

// Label is a compact, sortable title: "2025-W42", "2025-10" or "2025".
func (w Window) Label() string {
	switch w.Kind {
	case Week:
		return fmt.Sprintf("%04d-W%02d", w.Year(), w.Ordinal())
	case Month:
		return fmt.Sprintf("%04d-%02d", w.Start.Year(), int(w.Start.Month()))
	case Year:
		return fmt.Sprintf("%04d", w.Start.Year())
	}
	return ""
}

// BucketLabels names each trend slot: weekday abbreviations, day-of-month numbers
// or month abbreviations.
func (w Window) BucketLabels() []string {
	labels := make([]string, w.Buckets)
	for i := range labels {
		switch w.Kind {
		case Week:
			labels[i] = w.Start.AddDate(0, 0, i).Weekday().String()[:3]
		case Month:
			labels[i] = fmt.Sprintf("%d", i+1)
		case Year:
			labels[i] = time.Month(int(w.Start.Month()) + i).String()[:3]
		}
	}
	return labels
}
