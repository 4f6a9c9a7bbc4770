package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a provider's breaker rejects a call. The
// orchestrator treats it like an exhausted quota: skip, don't fail.
var ErrCircuitOpen = eris.New("provider circuit is open")

// BreakerState is the circuit position for one provider.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig controls when a provider drops out of the fallback chain.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit.
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before allowing a
	// probe call.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the per-provider breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

type breaker struct {
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// Breakers tracks one circuit per provider name.
type Breakers struct {
	mu  sync.Mutex
	cfg BreakerConfig
	m   map[string]*breaker
	now func() time.Time
}

// NewBreakers creates a per-provider breaker registry.
func NewBreakers(cfg BreakerConfig) *Breakers {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	return &Breakers{cfg: cfg, m: make(map[string]*breaker), now: time.Now}
}

// WithClock injects a time source for tests.
func (b *Breakers) WithClock(now func() time.Time) *Breakers {
	b.now = now
	return b
}

// Allow reports whether a call to the named provider may proceed. An open
// circuit past its reset timeout transitions to half-open and admits one
// probe.
func (b *Breakers) Allow(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.m[name]
	if br == nil {
		return true
	}

	switch br.state {
	case StateOpen:
		if b.now().Sub(br.lastFailure) >= b.cfg.ResetTimeout {
			br.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// Record feeds a call outcome into the provider's breaker.
func (b *Breakers) Record(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.m[name]
	if br == nil {
		br = &breaker{}
		b.m[name] = br
	}

	if err == nil {
		if br.state != StateClosed {
			zap.L().Info("provider circuit closed", zap.String("provider", name))
		}
		br.state = StateClosed
		br.failures = 0
		return
	}

	br.failures++
	br.lastFailure = b.now()

	if br.state == StateHalfOpen || br.failures >= b.cfg.FailureThreshold {
		if br.state != StateOpen {
			zap.L().Warn("provider circuit opened",
				zap.String("provider", name),
				zap.Int("consecutive_failures", br.failures),
			)
		}
		br.state = StateOpen
	}
}

// State returns the current circuit position for a provider.
func (b *Breakers) State(name string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.m[name]
	if br == nil {
		return StateClosed
	}
	if br.state == StateOpen && b.now().Sub(br.lastFailure) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return br.state
}
