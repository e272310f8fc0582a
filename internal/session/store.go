// Package session holds the observable statistics state of one viewer: the
// selected period and the latest aggregate and trend computed for it.
//
// Recomputations run on background goroutines. Each request carries a sequence
// number and only the result of the most recently issued request is applied;
// superseded requests are also cancelled through their context.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/period"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("session closed")

// Computer produces the snapshot of the window of kind containing ref.
type Computer interface {
	Compute(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error)
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of reference instants.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentSession)
		}
	}
}

// WithPeriod sets the period selected before the first SetPeriod call.
func WithPeriod(kind core.PeriodKind) Option {
	return func(s *Store) { s.state.Period = kind }
}

type subscriber struct {
	ch   chan State
	once sync.Once
}

// Store is the statistics state holder. It is safe for concurrent use.
type Store struct {
	computer Computer
	now      func() time.Time
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	seq     uint64
	cancel  context.CancelFunc
	closed  bool
	subs    map[int]*subscriber
	nextSub int
	wg      sync.WaitGroup
}

func New(c Computer, opts ...Option) *Store {
	s := &Store{
		computer: c,
		now:      time.Now,
		logger:   log.Discard().WithComponent(log.ComponentSession),
		state:    State{Period: core.Month, Status: StatusIdle},
		subs:     make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetPeriod selects kind and starts recomputing in the background. The store
// moves to Loading right away; the previous aggregate stays visible until the
// new one replaces it. Unknown kinds are rejected with period.ErrInvalidPeriod
// and leave the state untouched.
func (s *Store) SetPeriod(kind core.PeriodKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", period.ErrInvalidPeriod, kind)
	}
	return s.issue(kind)
}

// Refresh recomputes the currently selected period.
func (s *Store) Refresh() error {
	s.mu.Lock()
	kind := s.state.Period
	s.mu.Unlock()
	return s.issue(kind)
}

func (s *Store) issue(kind core.PeriodKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.state.Period = kind
	s.state.Status = StatusLoading
	s.state.Loading = true
	s.state.Err = ""
	s.state.Seq = seq
	s.state.UpdatedAt = s.now()
	s.publishLocked()

	ref := s.now()
	s.logger.Debug("Recompute issued", log.NewFields().WithPeriod(string(kind), seq).ToSlice()...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		snap, err := s.computer.Compute(ctx, kind, ref)
		s.apply(seq, snap, err)
	}()
	return nil
}

// apply publishes the outcome of request seq unless a newer request was
// issued in the meantime or the store was closed.
func (s *Store) apply(seq uint64, snap core.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := log.NewFields().WithPeriod(string(s.state.Period), seq)
	if s.closed || seq != s.seq {
		s.logger.Debug("Stale result discarded", fields.ToSlice()...)
		return
	}

	s.state.Loading = false
	s.state.UpdatedAt = s.now()
	if err != nil {
		s.state.Status = StatusFailed
		s.state.Err = err.Error()
		s.state.Aggregate = nil
		s.state.Trend = nil
		s.state.Window = core.Window{}
		s.logger.Warn("Statistics computation failed", fields.WithError(err).ToSlice()...)
	} else {
		agg := snap.Aggregate.Clone()
		s.state.Status = StatusReady
		s.state.Err = ""
		s.state.Window = snap.Window
		s.state.Aggregate = &agg
		s.state.Trend = snap.Trend.Clone()
		s.logger.Debug("Statistics ready", fields.
			WithWindow(snap.Window.Label(), snap.Window.Start, snap.Window.End).
			WithTotals(agg.TotalExpense.Cents, agg.TotalIncome.Cents).
			ToSlice()...)
	}
	s.publishLocked()
}

// Subscribe returns a channel that receives the current state immediately and
// every later change. Slow readers only miss intermediate states: the channel
// always ends up holding the latest one. The returned func unsubscribes.
func (s *Store) Subscribe(buf int) (<-chan State, func()) {
	if buf < 1 {
		buf = 1
	}
	sub := &subscriber{ch: make(chan State, buf)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	send(sub.ch, s.state.Clone())
	s.mu.Unlock()

	return sub.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			sub.once.Do(func() { close(sub.ch) })
		}
	}
}

func (s *Store) publishLocked() {
	for _, sub := range s.subs {
		send(sub.ch, s.state.Clone())
	}
}

// send delivers st without blocking, dropping the oldest queued state when the
// buffer is full. Only called with the store lock held, so it never races with
// another sender.
func send(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

// Close cancels outstanding work, closes every subscription and waits for
// background goroutines to exit. Nothing is published afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	for id, sub := range s.subs {
		delete(s.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("Session closed")
}
