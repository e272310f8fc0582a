package stats

import (
	"context"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
)

// CachedEngine memoises snapshots per window. Invalidate must be called when the
// ledger changes; results computed across an invalidation are not stored.
type CachedEngine struct {
	engine     *Engine
	cache      cache.Cache[core.Snapshot]
	mu         sync.Mutex
	generation uint64
	logger     *log.Logger
}

func NewCachedEngine(engine *Engine, c cache.Cache[core.Snapshot], logger *log.Logger) *CachedEngine {
	if logger == nil {
		logger = log.Discard()
	}
	return &CachedEngine{
		engine: engine,
		cache:  c,
		logger: logger.WithComponent(log.ComponentCache),
	}
}

// Compute returns the cached snapshot for the window of kind containing ref, or
// computes and stores it.
func (c *CachedEngine) Compute(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Snapshot, error) {
	w, err := c.engine.Resolver().Resolve(kind, ref)
	if err != nil {
		return core.Snapshot{}, err
	}
	key := w.Label()
	if snap, ok := c.cache.Get(key); ok {
		return snap.Clone(), nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	snap, err := c.engine.ComputeWindow(ctx, w)
	if err != nil {
		return core.Snapshot{}, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.cache.Set(key, snap.Clone())
	}
	c.mu.Unlock()
	return snap, nil
}

// Compare is not cached; it always reads fresh ledger totals.
func (c *CachedEngine) Compare(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Comparison, error) {
	return c.engine.Compare(ctx, kind, ref)
}

// Invalidate drops every cached snapshot.
func (c *CachedEngine) Invalidate() {
	c.mu.Lock()
	c.generation++
	n := c.cache.Purge()
	c.mu.Unlock()
	if n > 0 {
		c.logger.Debug("Snapshot cache invalidated", log.FieldCount, n)
	}
}
