package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/model"
)

type nopCaller struct{}

func (nopCaller) Complete(_ context.Context, _ Request) (string, error) { return "", nil }

func textProvider(name string, priority int, enabled bool) Descriptor {
	return Descriptor{
		Name:         name,
		Family:       "anthropic",
		Priority:     priority,
		Enabled:      enabled,
		Capabilities: []string{"extraction"},
	}
}

func TestCandidates_SortedByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(textProvider("slow", 3, true))
	r.Register(textProvider("fast", 1, true))
	r.Register(textProvider("mid", 2, true))

	got := r.Candidates(model.TaskDocumentExtraction)
	require.Len(t, got, 3)
	assert.Equal(t, "fast", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)
	assert.Equal(t, "slow", got[2].Name)
}

func TestCandidates_TiesBrokenByRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(textProvider("first", 1, true))
	r.Register(textProvider("second", 1, true))
	r.Register(textProvider("third", 1, true))

	got := r.Candidates(model.TaskDocumentExtraction)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{got[0].Name, got[1].Name, got[2].Name})
}

func TestCandidates_SkipsDisabled(t *testing.T) {
	r := NewRegistry()
	r.Register(textProvider("on", 1, true))
	r.Register(textProvider("off", 2, false))

	got := r.Candidates(model.TaskDocumentExtraction)
	require.Len(t, got, 1)
	assert.Equal(t, "on", got[0].Name)
}

func TestCandidates_FiltersByCapability(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{
		Name: "vision-capable", Family: "anthropic", Priority: 2, Enabled: true,
		Capabilities: []string{"extraction", "vision"},
	})
	r.Register(textProvider("text-only", 1, true))

	vision := r.Candidates(model.TaskVision)
	require.Len(t, vision, 1)
	assert.Equal(t, "vision-capable", vision[0].Name)

	text := r.Candidates(model.TaskDocumentExtraction)
	assert.Len(t, text, 2)
}

func TestRecordSuccess_UpdatesUsage(t *testing.T) {
	r := NewRegistry()
	r.Register(textProvider("p1", 1, true))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.RecordSuccess("p1", at)
	r.RecordSuccess("p1", at.Add(time.Minute))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(2), snap[0].UsageCount)
	assert.Equal(t, at.Add(time.Minute), snap[0].LastUsed)
}

func TestCandidates_ReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Register(textProvider("p1", 1, true))

	got := r.Candidates(model.TaskDocumentExtraction)
	got[0].Name = "mutated"

	assert.Equal(t, "p1", r.Snapshot()[0].Name)
}

func TestRegisterFamily(t *testing.T) {
	r := NewRegistry()
	r.RegisterFamily("anthropic", nopCaller{})

	_, ok := r.Caller("anthropic")
	assert.True(t, ok)
	_, ok = r.Caller("unknown")
	assert.False(t, ok)
}
