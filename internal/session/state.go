package session

import (
	"time"

	"tally/internal/core"
)

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

// Status is the lifecycle stage of the store's current request.
type Status int

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// State is an immutable view of the store. Every published value is a fresh
// copy; holders may keep it as long as they like.
type State struct {
	Period    core.PeriodKind
	Status    Status
	Window    core.Window
	Aggregate *core.Aggregate // nil until a computation succeeds
	Trend     core.Trend
	Loading   bool
	Err       string
	Seq       uint64
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Aggregate != nil {
		agg := s.Aggregate.Clone()
		out.Aggregate = &agg
	}
	out.Trend = s.Trend.Clone()
	return out
}

// Snapshot returns the computed snapshot when the state holds one.
func (s State) Snapshot() (core.Snapshot, bool) {
	if s.Aggregate == nil {
		return core.Snapshot{}, false
	}
	return core.Snapshot{
		Window:    s.Window,
		Aggregate: s.Aggregate.Clone(),
		Trend:     s.Trend.Clone(),
	}, true
}
