// Package provider holds the completion-provider registry: ordered
// descriptor records plus a capability-keyed dispatch table of callers, one
// per provider family.
package provider

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/docpipe/internal/model"
)

// Request is the normalized invocation shape handed to any provider family.
type Request struct {
	System    string
	Prompt    string
	Images    []model.PageImage
	Model     string
	MaxTokens int
}

// Caller invokes one provider family and normalizes its reply to raw text.
// Implementations perform exactly one remote call per invocation.
type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Descriptor describes one provider in the fallback chain. Priority values
// need not be unique; ties are broken by registration order. The credential
// reference is opaque here; the resolved secret lives inside the family
// caller only.
type Descriptor struct {
	Name         string
	Family       string
	Model        string
	Priority     int
	Enabled      bool
	Capabilities []string
	PerMinute    int
	PerDay       int
	KeyRef       string

	// Usage stats, maintained by the registry on success only.
	UsageCount int64
	LastUsed   time.Time
}

// HasCapability reports whether the descriptor carries a capability tag.
func (d Descriptor) HasCapability(tag string) bool {
	return slices.Contains(d.Capabilities, tag)
}

// Registry holds descriptors in registration order plus the family dispatch
// table. Usage counters are shared mutable state and are mutex-guarded.
type Registry struct {
	mu          sync.Mutex
	descriptors []Descriptor
	callers     map[string]Caller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{callers: make(map[string]Caller)}
}

// RegisterFamily installs the caller for a provider family.
func (r *Registry) RegisterFamily(family string, c Caller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callers[family] = c
}

// Register appends a provider descriptor. Registration order is the
// tie-breaker for equal priorities.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors = append(r.descriptors, d)
}

// Caller returns the caller for a family.
func (r *Registry) Caller(family string) (Caller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.callers[family]
	return c, ok
}

// Candidates returns copies of the enabled descriptors able to serve the
// task, sorted by ascending priority. Disabled providers are never returned.
func (r *Registry) Candidates(task model.TaskType) []Descriptor {
	tag := task.Capability()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if !d.Enabled || !d.HasCapability(tag) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// RecordSuccess increments a provider's usage counter and stamps its
// last-used time. Called only when the provider produced the winning reply.
func (r *Registry) RecordSuccess(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.descriptors {
		if r.descriptors[i].Name == name {
			r.descriptors[i].UsageCount++
			r.descriptors[i].LastUsed = at
			return
		}
	}
}

// Snapshot returns copies of all descriptors for observability endpoints.
func (r *Registry) Snapshot() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.descriptors)
}
