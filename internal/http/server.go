// Package http serves the statistics session as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/chart"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/session"
)

// StateSource is the session the server exposes.
type StateSource interface {
	State() session.State
	SetPeriod(kind core.PeriodKind) error
}

// Comparer computes previous-period comparisons.
type Comparer interface {
	Compare(ctx context.Context, kind core.PeriodKind, ref time.Time) (core.Comparison, error)
}

// Options tunes a Server. Zero values pick the defaults.
type Options struct {
	Location          *time.Location
	AnimationDuration time.Duration
	RateLimit         int
	RateWindow        time.Duration
	Now               func() time.Time
}

type Server struct {
	http.Server
	state  StateSource
	stats  Comparer
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	ringAnim *chart.Animation
	barsAnim *chart.Animation

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, state StateSource, stats Comparer, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		state:       state,
		stats:       stats,
		loc:         opts.Location,
		now:         opts.Now,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RateLimit, opts.RateWindow),
		metrics:     &securityMetrics{},
		ringAnim:    chart.NewAnimation(opts.AnimationDuration),
		barsAnim:    chart.NewAnimation(opts.AnimationDuration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/period", s.handleSetPeriod)
	mux.HandleFunc("/api/charts/ring", s.handleRing)
	mux.HandleFunc("/api/charts/bars", s.handleBars)
	mux.HandleFunc("/api/compare", s.handleCompare)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(s.logger)(s.withSecurity(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// withSecurity adds security headers and rate limits state-changing requests.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				"client_ip", clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		setSecurityHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
