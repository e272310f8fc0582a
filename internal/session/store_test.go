package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ledger/memory"
	"tally/internal/period"
	"tally/internal/stats"
)

var fixedNow = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

type computeFunc func(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error)

func (f computeFunc) Compute(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error) {
	return f(ctx, kind, ref)
}

func newEngine() *stats.Engine {
	store := memory.New([]core.Category{{ID: 1, Name: "Food"}}, []core.Transaction{
		{Amount: core.Money{Cents: 500}, Kind: core.Expense, CategoryID: 1, OccurredAt: time.Date(2025, 10, 13, 1, 0, 0, 0, time.UTC)},
		{Amount: core.Money{Cents: 1500}, Kind: core.Expense, CategoryID: 1, OccurredAt: time.Date(2025, 10, 2, 1, 0, 0, 0, time.UTC)},
	})
	return stats.NewEngine(store, period.NewResolver(time.UTC), nil)
}

func waitFor(t *testing.T, ch <-chan State, pred func(State) bool) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed before condition was met")
			}
			if pred(st) {
				return st
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state")
		}
	}
}

func settled(st State) bool {
	return st.Status == StatusReady || st.Status == StatusFailed
}

func TestSetPeriodComputes(t *testing.T) {
	s := New(newEngine(), WithClock(func() time.Time { return fixedNow }))
	defer s.Close()
	ch, unsubscribe := s.Subscribe(4)
	defer unsubscribe()

	if st := <-ch; st.Status != StatusIdle || st.Aggregate != nil {
		t.Fatalf("expected idle initial state, got %+v", st)
	}

	if err := s.SetPeriod(core.Week); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := waitFor(t, ch, settled)
	if st.Status != StatusReady || st.Loading || st.Err != "" {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Period != core.Week || st.Aggregate.TotalExpense.Cents != 500 || len(st.Trend) != 7 || st.Trend[0] != 5.0 {
		t.Fatalf("unexpected week result %+v", st)
	}

	if err := s.SetPeriod(core.Month); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st = waitFor(t, ch, func(st State) bool { return settled(st) && st.Period == core.Month })
	if st.Aggregate.TotalExpense.Cents != 2000 || len(st.Trend) != 31 {
		t.Fatalf("unexpected month result %+v", st)
	}
	if st.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", st.Seq)
	}
}

func TestSetPeriodRejectsUnknownKind(t *testing.T) {
	called := false
	s := New(computeFunc(func(context.Context, core.PeriodKind, time.Time) (core.Snapshot, error) {
		called = true
		return core.Snapshot{}, nil
	}))
	defer s.Close()

	err := s.SetPeriod(core.PeriodKind("decade"))
	if !errors.Is(err, period.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	st := s.State()
	if st.Status != StatusIdle || st.Seq != 0 || st.Period != core.Month {
		t.Fatalf("state should be untouched, got %+v", st)
	}
	s.Close()
	if called {
		t.Fatalf("computer must not run for an invalid kind")
	}
}

func TestFailureClearsAggregateAndRetrySucceeds(t *testing.T) {
	boom := errors.New("ledger unavailable")
	engine := newEngine()
	fail := true
	gate := make(chan struct{}, 1)
	s := New(computeFunc(func(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error) {
		<-gate
		if fail {
			return core.Snapshot{}, boom
		}
		return engine.Compute(ctx, kind, ref)
	}), WithClock(func() time.Time { return fixedNow }))
	defer s.Close()
	ch, unsubscribe := s.Subscribe(4)
	defer unsubscribe()

	fail = false
	gate <- struct{}{}
	_ = s.SetPeriod(core.Month)
	if st := waitFor(t, ch, settled); st.Status != StatusReady {
		t.Fatalf("expected ready, got %+v", st)
	}

	fail = true
	_ = s.SetPeriod(core.Month)
	loading := waitFor(t, ch, func(st State) bool { return st.Status == StatusLoading })
	if loading.Aggregate == nil || !loading.Loading {
		t.Fatalf("loading state should keep the previous aggregate, got %+v", loading)
	}
	gate <- struct{}{}
	st := waitFor(t, ch, settled)
	if st.Status != StatusFailed || st.Err == "" || st.Aggregate != nil || st.Trend != nil || st.Loading {
		t.Fatalf("unexpected failed state %+v", st)
	}

	fail = false
	gate <- struct{}{}
	_ = s.Refresh()
	st = waitFor(t, ch, settled)
	if st.Status != StatusReady || st.Err != "" || st.Aggregate == nil {
		t.Fatalf("retry should recover, got %+v", st)
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	orders := []struct {
		name  string
		first core.PeriodKind
	}{
		{"newer finishes first", core.Month},
		{"older finishes first", core.Week},
	}
	for _, tc := range orders {
		t.Run(tc.name, func(t *testing.T) {
			engine := newEngine()
			gates := map[core.PeriodKind]chan struct{}{
				core.Week:  make(chan struct{}),
				core.Month: make(chan struct{}),
			}
			done := make(chan core.PeriodKind, 2)
			s := New(computeFunc(func(_ context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error) {
				<-gates[kind]
				// Ignore cancellation so that the stale result really arrives.
				snap, err := engine.Compute(context.Background(), kind, ref)
				defer func() { done <- kind }()
				return snap, err
			}), WithClock(func() time.Time { return fixedNow }))
			defer s.Close()

			if err := s.SetPeriod(core.Week); err != nil {
				t.Fatal(err)
			}
			if err := s.SetPeriod(core.Month); err != nil {
				t.Fatal(err)
			}

			second := core.Week
			if tc.first == core.Week {
				second = core.Month
			}
			close(gates[tc.first])
			<-done
			close(gates[second])
			<-done
			s.wg.Wait()

			st := s.State()
			if st.Period != core.Month || st.Status != StatusReady {
				t.Fatalf("expected month ready, got %+v", st)
			}
			if st.Window.Kind != core.Month || len(st.Trend) != 31 || st.Aggregate.TotalExpense.Cents != 2000 {
				t.Fatalf("state reflects the superseded request: %+v", st)
			}
		})
	}
}

func TestSupersededRequestIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	s := New(computeFunc(func(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error) {
		if kind == core.Year {
			<-ctx.Done()
			close(cancelled)
			return core.Snapshot{}, ctx.Err()
		}
		return newEngine().Compute(ctx, kind, ref)
	}), WithClock(func() time.Time { return fixedNow }))
	defer s.Close()

	_ = s.SetPeriod(core.Year)
	_ = s.SetPeriod(core.Week)
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded request was not cancelled")
	}
}

func TestCloseStopsPublishing(t *testing.T) {
	started := make(chan struct{})
	s := New(computeFunc(func(ctx context.Context, _ core.PeriodKind, _ time.Time) (core.Snapshot, error) {
		close(started)
		<-ctx.Done()
		return core.Snapshot{}, ctx.Err()
	}))
	ch, _ := s.Subscribe(8)

	_ = s.SetPeriod(core.Year)
	<-started
	s.Close()

	for st := range ch {
		if st.Status == StatusFailed || st.Status == StatusReady {
			t.Fatalf("nothing should be published after close, got %+v", st)
		}
	}
	if st := s.State(); st.Status != StatusLoading {
		t.Fatalf("closed store should keep its last state, got %+v", st)
	}
	if err := s.SetPeriod(core.Month); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-mustSubscribe(s); ok {
		t.Fatalf("subscribing to a closed store should yield a closed channel")
	}
}

func mustSubscribe(s *Store) <-chan State {
	ch, _ := s.Subscribe(1)
	return ch
}

func TestPublishedStatesAreCopies(t *testing.T) {
	s := New(newEngine(), WithClock(func() time.Time { return fixedNow }))
	defer s.Close()
	ch, unsubscribe := s.Subscribe(4)

	_ = s.SetPeriod(core.Week)
	st := waitFor(t, ch, settled)
	st.Trend[0] = 42
	st.Aggregate.Breakdown[0].Amount = core.Money{Cents: 1}

	again := s.State()
	if again.Trend[0] != 5.0 || again.Aggregate.Breakdown[0].Amount.Cents != 500 {
		t.Fatalf("subscriber mutation leaked into the store: %+v", again)
	}

	unsubscribe()
	unsubscribe()
	for range ch {
	}
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	s := New(newEngine(), WithClock(func() time.Time { return fixedNow }))
	defer s.Close()
	ch, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	_ = s.SetPeriod(core.Week)
	_ = s.SetPeriod(core.Year)
	st := waitFor(t, ch, func(st State) bool { return settled(st) && st.Period == core.Year })
	if len(st.Trend) != 12 {
		t.Fatalf("expected year trend, got %d buckets", len(st.Trend))
	}
}
