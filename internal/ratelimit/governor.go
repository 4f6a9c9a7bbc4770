// Package ratelimit implements a fixed-window admission governor keyed by
// arbitrary identifiers (callers, providers).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window
// resets. Zero when the check was allowed.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Preset bounds admissions for one call class. The governor is parameterized
// by preset rather than hard-coded per endpoint.
type Preset struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

type entry struct {
	count   int
	resetAt time.Time
}

// Governor tracks per-identifier counters over fixed windows. All state is
// guarded by one mutex so read-check-increment is a single indivisible step
// under concurrent requests.
type Governor struct {
	mu      sync.Mutex
	entries map[string]*entry

	now           func() time.Time
	sweepInterval time.Duration
}

// Option configures the governor.
type Option func(*Governor)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

// WithSweepInterval overrides how often expired entries are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(g *Governor) {
		g.sweepInterval = d
	}
}

// NewGovernor creates a governor. Call Run to start background eviction.
func NewGovernor(opts ...Option) *Governor {
	g := &Governor{
		entries:       make(map[string]*entry),
		now:           time.Now,
		sweepInterval: time.Minute,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check admits or rejects one request for identifier within a fixed window.
// On first use, or once the window has elapsed, the counter resets and a new
// window begins. Rejection is idempotent: once the limit is reached, further
// checks do not increment the counter.
func (g *Governor) Check(identifier string, window time.Duration, maxRequests int) Decision {
	now := g.now()

	g.mu.Lock()
	e, ok := g.entries[identifier]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{resetAt: now.Add(window)}
		g.entries[identifier] = e
	}

	allowed := e.count < maxRequests
	if allowed {
		e.count++
	}
	remaining := maxRequests - e.count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := e.resetAt
	g.mu.Unlock()

	if !allowed {
		zap.L().Warn("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("max_requests", maxRequests),
			zap.Duration("window", window),
			zap.Time("reset_at", resetAt),
		)
	}

	return Decision{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}

// CheckPreset applies a named preset to an identifier.
func (g *Governor) CheckPreset(p Preset, identifier string) Decision {
	return g.Check(p.Name+":"+identifier, p.Window, p.MaxRequests)
}

// Sweep evicts entries whose window has already expired and returns how many
// were removed.
func (g *Governor) Sweep() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, e := range g.entries {
		if !now.Before(e.resetAt) {
			delete(g.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is canceled, bounding memory held by
// stale identifiers.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				zap.L().Debug("rate governor sweep", zap.Int("evicted", n))
			}
		}
	}
}

// Len reports how many identifiers are currently tracked.
func (g *Governor) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
