// Package cache provides a generic TTL-bounded LRU cache and a manager that
// sweeps expired entries in the background.
package cache

import (
	"context"
	"sync"
	"time"

	"tally/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge() int
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// StatsReporter is implemented by caches that count hits and misses.
type StatsReporter interface {
	Stats() Stats
}

var (
	_ Cache[int]    = (*LRUCache[int])(nil)
	_ StatsReporter = (*LRUCache[int])(nil)
)

// Manager periodically sweeps registered caches.
type Manager struct {
	mu     sync.Mutex
	caches []Cleaner
	logger *log.Logger
}

// NewManager creates a new cache manager. A nil logger discards output.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the sweep list.
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	m.caches = append(m.caches, c)
	m.mu.Unlock()
}

// Sweep cleans every registered cache once and returns the number of entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Report sums usage over the registered caches that track it and logs the
// totals at debug level.
func (m *Manager) Report() Stats {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	var total Stats
	for _, c := range caches {
		r, ok := c.(StatsReporter)
		if !ok {
			continue
		}
		st := r.Stats()
		total.Size += st.Size
		total.Hits += st.Hits
		total.Misses += st.Misses
	}
	m.logger.Debug("Cache usage", "size", total.Size, "hits", total.Hits, "misses", total.Misses)
	return total
}

// Run sweeps and reports every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldCount, n)
			}
			m.Report()
		case <-ctx.Done():
			return
		}
	}
}
