package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/provider"
	"github.com/sells-group/docpipe/internal/ratelimit"
	"github.com/sells-group/docpipe/internal/resilience"
)

// ProviderResult is the raw outcome of the winning provider call.
// Diagnostics lists the failure reason of every candidate tried before the
// winner.
type ProviderResult struct {
	Raw         string
	Provider    string
	Model       string
	Latency     time.Duration
	Diagnostics []string
}

// Orchestrator tries providers in priority order until one succeeds. Provider
// attempts are sequential with short-circuit: only one call is in flight at a
// time, so an early success never wastes quota on later candidates.
type Orchestrator struct {
	registry *provider.Registry
	governor *ratelimit.Governor
	breakers *resilience.Breakers
	timeout  time.Duration
	retry    resilience.RetryConfig
	now      func() time.Time
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTimeout bounds each individual provider call.
func WithTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithRetry sets the per-provider retry policy.
func WithRetry(cfg resilience.RetryConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.retry = cfg }
}

// WithBreakers installs per-provider circuit breakers.
func WithBreakers(b *resilience.Breakers) OrchestratorOption {
	return func(o *Orchestrator) { o.breakers = b }
}

// WithOrchestratorClock injects a time source for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a fallback orchestrator over the registry.
func NewOrchestrator(reg *provider.Registry, gov *ratelimit.Governor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		governor: gov,
		breakers: resilience.NewBreakers(resilience.DefaultBreakerConfig()),
		timeout:  60 * time.Second,
		retry:    resilience.DefaultRetryConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Breakers exposes circuit state for observability endpoints.
func (o *Orchestrator) Breakers() *resilience.Breakers { return o.breakers }

// Extract invokes the fallback chain for one request. First success wins; a
// provider with an exhausted quota or an open circuit is skipped without
// counting as a hard failure. If every candidate fails, the aggregate error
// carries each provider's failure reason for diagnostics.
func (o *Orchestrator) Extract(ctx context.Context, task model.TaskType, req provider.Request) (*ProviderResult, error) {
	candidates := o.registry.Candidates(task)
	if len(candidates) == 0 {
		return nil, eris.Errorf("no enabled provider supports task %q", task)
	}

	var failures []string
	for _, cand := range candidates {
		if reason, ok := o.admit(cand); !ok {
			failures = append(failures, fmt.Sprintf("%s: %s", cand.Name, reason))
			continue
		}

		caller, ok := o.registry.Caller(cand.Family)
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: no caller registered for family %q", cand.Name, cand.Family))
			continue
		}

		preq := req
		preq.Model = cand.Model

		start := o.now()
		raw, err := o.invoke(ctx, cand.Name, caller, preq)
		latency := o.now().Sub(start)

		o.breakers.Record(cand.Name, err)

		if err != nil {
			zap.L().Warn("provider attempt failed",
				zap.String("provider", cand.Name),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
			failures = append(failures, fmt.Sprintf("%s: %s", cand.Name, rootMessage(err)))
			continue
		}

		o.registry.RecordSuccess(cand.Name, o.now())
		zap.L().Info("provider attempt succeeded",
			zap.String("provider", cand.Name),
			zap.String("model", cand.Model),
			zap.Duration("latency", latency),
			zap.Int("failed_attempts", len(failures)),
		)

		return &ProviderResult{
			Raw:         raw,
			Provider:    cand.Name,
			Model:       cand.Model,
			Latency:     latency,
			Diagnostics: failures,
		}, nil
	}

	return nil, &AllProvidersFailedError{Failures: failures}
}

// admit runs the provider's own quota and circuit checks. A negative answer
// means skip, not fail.
func (o *Orchestrator) admit(cand provider.Descriptor) (string, bool) {
	if cand.PerMinute > 0 {
		d := o.governor.Check("provider:"+cand.Name+":minute", time.Minute, cand.PerMinute)
		if !d.Allowed {
			return "per-minute quota exhausted", false
		}
	}
	if cand.PerDay > 0 {
		d := o.governor.Check("provider:"+cand.Name+":day", 24*time.Hour, cand.PerDay)
		if !d.Allowed {
			return "per-day quota exhausted", false
		}
	}
	if !o.breakers.Allow(cand.Name) {
		return "circuit open", false
	}
	return "", true
}

// invoke runs one provider call under the per-call timeout and retry policy.
// A timeout or an empty reply is a failure like any other.
func (o *Orchestrator) invoke(ctx context.Context, name string, caller provider.Caller, req provider.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := resilience.DoVal(callCtx, o.retry, name, func(ctx context.Context) (string, error) {
		return caller.Complete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", eris.New("empty reply")
	}
	return raw, nil
}

func rootMessage(err error) string {
	root := eris.Cause(err)
	if root != nil {
		return root.Error()
	}
	return err.Error()
}
