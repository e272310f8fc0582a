package chart

import (
	"sync"
	"time"
)

// DefaultAnimationDuration is how long charts take to grow to full size.
const DefaultAnimationDuration = time.Second

// Animation turns wall-clock time into progress for one chart. The clock
// restarts whenever the dataset changes by value, not by identity.
type Animation struct {
	Duration time.Duration

	mu      sync.Mutex
	data    []Datum
	started time.Time
}

func NewAnimation(d time.Duration) *Animation {
	if d <= 0 {
		d = DefaultAnimationDuration
	}
	return &Animation{Duration: d}
}

// Update records the dataset shown at now and reports whether the animation
// restarted.
func (a *Animation) Update(data []Datum, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started.IsZero() && Equal(a.data, data) {
		return false
	}
	a.data = append([]Datum(nil), data...)
	a.started = now
	return true
}

// Progress returns the linear progress in [0, 1] at now. Before any Update it
// is 1, so nothing animates from an unknown start.
func (a *Animation) Progress(now time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started.IsZero() || a.Duration <= 0 {
		return 1
	}
	return Clamp(float64(now.Sub(a.started)) / float64(a.Duration))
}
