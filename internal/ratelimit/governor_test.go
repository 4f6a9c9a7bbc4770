package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCheck_LimitSequence(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	var got []bool
	for i := 0; i < 4; i++ {
		d := g.Check("caller-1", time.Minute, 3)
		got = append(got, d.Allowed)
	}
	assert.Equal(t, []bool{true, true, true, false}, got)
}

func TestCheck_RejectionIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		g.Check("caller-1", time.Minute, 2)
	}

	// Repeated rejections must not consume budget or move the reset.
	first := g.Check("caller-1", time.Minute, 2)
	second := g.Check("caller-1", time.Minute, 2)
	assert.False(t, first.Allowed)
	assert.False(t, second.Allowed)
	assert.Equal(t, first.ResetAt, second.ResetAt)
	assert.Equal(t, 0, second.Remaining)
}

func TestCheck_WindowReset(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		g.Check("caller-1", time.Minute, 3)
	}
	require.False(t, g.Check("caller-1", time.Minute, 3).Allowed)

	clock.Advance(time.Minute)

	d := g.Check("caller-1", time.Minute, 3)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining) // counter reset to 1
	assert.Equal(t, clock.Now().Add(time.Minute), d.ResetAt)
}

func TestCheck_IdentifiersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	require.True(t, g.Check("a", time.Minute, 1).Allowed)
	require.False(t, g.Check("a", time.Minute, 1).Allowed)
	assert.True(t, g.Check("b", time.Minute, 1).Allowed)
}

func TestCheck_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	require.True(t, g.Check("a", time.Minute, 1).Allowed)
	d := g.Check("a", time.Minute, 1)
	require.False(t, d.Allowed)

	clock.Advance(20 * time.Second)
	assert.Equal(t, 40*time.Second, d.RetryAfter(clock.Now()))

	allowed := g.Check("b", time.Minute, 5)
	assert.Equal(t, time.Duration(0), allowed.RetryAfter(clock.Now()))
}

func TestCheckPreset_NamespacesIdentifier(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	strict := Preset{Name: "extraction", Window: time.Minute, MaxRequests: 1}
	relaxed := Preset{Name: "read", Window: time.Minute, MaxRequests: 5}

	require.True(t, g.CheckPreset(strict, "u1").Allowed)
	require.False(t, g.CheckPreset(strict, "u1").Allowed)

	// Same identifier under a different preset keeps its own budget.
	assert.True(t, g.CheckPreset(relaxed, "u1").Allowed)
}

func TestSweep_EvictsExpiredOnly(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	g.Check("old", time.Minute, 3)
	clock.Advance(30 * time.Second)
	g.Check("fresh", time.Minute, 3)

	clock.Advance(31 * time.Second) // "old" expired, "fresh" still open

	assert.Equal(t, 1, g.Sweep())
	assert.Equal(t, 1, g.Len())
}

func TestCheck_ConcurrentAdmissions(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(WithClock(clock.Now))

	const workers = 32
	const limit = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Check("shared", time.Minute, limit).Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
}
