// Package period resolves a period kind and a reference instant into a calendar
// window. Weeks start on Monday and every boundary is computed on the wall clock
// of the resolver's location, so DST days keep their calendar meaning.
package period

import (
	"errors"
	"fmt"
	"time"

	"tally/internal/core"
)

// ErrInvalidPeriod is returned for unknown kinds and for references outside the
// supported range.
var ErrInvalidPeriod = errors.New("invalid period")

var (
	minReference = time.Unix(0, 0).UTC()
	maxYear      = 9999
)

// Bounder computes the window that contains a reference instant for one kind.
// ref is already expressed in the resolver's location.
type Bounder interface {
	Bounds(ref time.Time) (start, end time.Time, buckets int)
}

// WeekBounder spans Monday 00:00 through Sunday 23:59:59.999.
type WeekBounder struct{}

func (WeekBounder) Bounds(ref time.Time) (time.Time, time.Time, int) {
	// Weekday counts from Sunday; shift so Monday is 0.
	offset := (int(ref.Weekday()) + 6) % 7
	y, m, d := ref.Date()
	start := time.Date(y, m, d-offset, 0, 0, 0, 0, ref.Location())
	return start, endBefore(start.AddDate(0, 0, 7)), 7
}

// MonthBounder spans the first through the last day of the month, one bucket per day.
type MonthBounder struct{}

func (MonthBounder) Bounds(ref time.Time) (time.Time, time.Time, int) {
	y, m, _ := ref.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, ref.Location())
	next := start.AddDate(0, 1, 0)
	return start, endBefore(next), next.AddDate(0, 0, -1).Day()
}

// YearBounder spans January 1st through December 31st, one bucket per month.
type YearBounder struct{}

func (YearBounder) Bounds(ref time.Time) (time.Time, time.Time, int) {
	start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
	return start, endBefore(start.AddDate(1, 0, 0)), 12
}

func endBefore(next time.Time) time.Time {
	return next.Add(-time.Millisecond)
}

// Resolver maps (kind, reference) to a core.Window.
type Resolver struct {
	loc      *time.Location
	bounders map[core.PeriodKind]Bounder
}

// NewResolver returns a resolver working in loc. A nil loc means UTC.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{
		loc: loc,
		bounders: map[core.PeriodKind]Bounder{
			core.Week:  WeekBounder{},
			core.Month: MonthBounder{},
			core.Year:  YearBounder{},
		},
	}
}

// Location returns the zone windows are resolved in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the window of the given kind that contains ref.
func (r *Resolver) Resolve(kind core.PeriodKind, ref time.Time) (core.Window, error) {
	bounder, ok := r.bounders[kind]
	if !ok {
		return core.Window{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidPeriod, kind)
	}
	local := ref.In(r.loc)
	if ref.Before(minReference) || local.Year() > maxYear {
		return core.Window{}, fmt.Errorf("%w: reference %s out of range", ErrInvalidPeriod, local.Format(time.RFC3339))
	}

	start, end, buckets := bounder.Bounds(local)
	return core.Window{Kind: kind, Start: start, End: end, Buckets: buckets}, nil
}

// Previous returns the window of the same kind that ends right before w starts.
func (r *Resolver) Previous(w core.Window) (core.Window, error) {
	return r.Resolve(w.Kind, w.Start.Add(-time.Millisecond))
}
