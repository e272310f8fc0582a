package cache

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tally/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a")
	}
	c.Set("c", 3) // evicts b, the least recently used

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}

	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)
	c.Set("k", "v")
	c.Set("other", "v")

	clock.t = clock.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry should still be valid")
	}

	clock.t = clock.t.Add(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestLRUPurge(t *testing.T) {
	c := NewLRUCache[int](5, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if n := c.Purge(); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("cache should be usable after purge")
	}
}

func TestManagerSweepAndRun(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](5, time.Second).WithClock(clock.now)
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 0 {
		t.Fatalf("nothing should expire yet, got %d", n)
	}
	clock.t = clock.t.Add(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

type sweepOnly struct{}

func (sweepOnly) CleanExpired() int { return 0 }

func TestManagerReport(t *testing.T) {
	a := NewLRUCache[int](5, 0)
	a.Set("x", 1)
	a.Get("x")
	a.Get("y")
	b := NewLRUCache[string](5, 0)
	b.Set("k", "v")
	b.Set("l", "w")
	b.Get("k")

	var buf bytes.Buffer
	m := NewManager(log.New(log.Config{Level: slog.LevelDebug, Output: &buf}))
	m.Register(a)
	m.Register(b)
	m.Register(sweepOnly{})

	got := m.Report()
	if want := (Stats{Size: 3, Hits: 2, Misses: 1}); got != want {
		t.Fatalf("Report() = %+v, want %+v", got, want)
	}
	out := buf.String()
	for _, want := range []string{"component=cache", "size=3", "hits=2", "misses=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
