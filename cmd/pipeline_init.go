package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/extract"
	"github.com/sells-group/docpipe/internal/prompt"
	"github.com/sells-group/docpipe/internal/provider"
	"github.com/sells-group/docpipe/internal/ratelimit"
	"github.com/sells-group/docpipe/internal/resilience"
	"github.com/sells-group/docpipe/internal/store"
	"github.com/sells-group/docpipe/internal/validate"
)

// pipelineEnv holds the initialized store, registry, governor, and pipeline
// needed by the extract/batch/serve commands.
type pipelineEnv struct {
	Store        store.Store
	Registry     *provider.Registry
	Governor     *ratelimit.Governor
	Orchestrator *extract.Orchestrator
	Pipeline     *extract.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, provider registry, rate governor, and
// extraction pipeline. The governor's background sweeper runs until ctx is
// canceled. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg := provider.Build(cfg)

	gov := ratelimit.NewGovernor(
		ratelimit.WithSweepInterval(time.Duration(cfg.RateLimit.SweepIntervalSecs) * time.Second),
	)
	go gov.Run(ctx)

	prompts := prompt.Defaults()
	if cfg.Prompts.File != "" {
		prompts, err = prompt.Load(cfg.Prompts.File)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load prompt templates")
		}
		zap.L().Info("prompt templates loaded", zap.String("file", cfg.Prompts.File))
	}

	orch := extract.NewOrchestrator(reg, gov,
		extract.WithTimeout(time.Duration(cfg.Pipeline.ProviderTimeoutSecs)*time.Second),
		extract.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Pipeline.RetryAttempts}),
	)

	p := extract.NewPipeline(orch, prompts, gov,
		extract.WithThresholds(validate.Thresholds{
			LowConfidence:   cfg.Thresholds.LowConfidence,
			ReviewOverall:   cfg.Thresholds.ReviewOverall,
			ReviewReference: cfg.Thresholds.ReviewReference,
		}),
		extract.WithCallerPreset(ratelimit.Preset{
			Name:        "extraction",
			Window:      time.Duration(cfg.RateLimit.Extraction.WindowSecs) * time.Second,
			MaxRequests: cfg.RateLimit.Extraction.MaxRequests,
		}),
		extract.WithMinTextLength(cfg.Pipeline.MinTextLength),
		extract.WithMaxTokens(cfg.Pipeline.MaxTokens),
	)

	zap.L().Info("pipeline initialized",
		zap.Int("providers", len(reg.Snapshot())),
		zap.String("store", cfg.Store.Driver),
	)

	return &pipelineEnv{
		Store:        st,
		Registry:     reg,
		Governor:     gov,
		Orchestrator: orch,
		Pipeline:     p,
	}, nil
}
