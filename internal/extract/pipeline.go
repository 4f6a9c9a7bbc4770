// Package extract wires the extraction stages into the single entry point
// callers invoke per document: admission, preprocessing, prompt selection,
// provider fallback, parsing, validation, and the review gate.
package extract

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/parse"
	"github.com/sells-group/docpipe/internal/preprocess"
	"github.com/sells-group/docpipe/internal/prompt"
	"github.com/sells-group/docpipe/internal/provider"
	"github.com/sells-group/docpipe/internal/ratelimit"
	"github.com/sells-group/docpipe/internal/validate"
)

// Pipeline runs the full extraction decision procedure for one document.
// Each Run is independent; callers may invoke it concurrently per document.
type Pipeline struct {
	orch         *Orchestrator
	prompts      *prompt.Library
	governor     *ratelimit.Governor
	thresholds   validate.Thresholds
	callerPreset ratelimit.Preset
	minTextLen   int
	maxTokens    int
	now          func() time.Time
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithThresholds overrides the confidence gates.
func WithThresholds(th validate.Thresholds) PipelineOption {
	return func(p *Pipeline) { p.thresholds = th }
}

// WithCallerPreset sets the caller-level admission preset.
func WithCallerPreset(preset ratelimit.Preset) PipelineOption {
	return func(p *Pipeline) { p.callerPreset = preset }
}

// WithMinTextLength overrides the unreadable-document cutoff.
func WithMinTextLength(n int) PipelineOption {
	return func(p *Pipeline) { p.minTextLen = n }
}

// WithMaxTokens sets the completion budget passed to providers.
func WithMaxTokens(n int) PipelineOption {
	return func(p *Pipeline) { p.maxTokens = n }
}

// WithPipelineClock injects a time source for tests.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline assembles the extraction pipeline.
func NewPipeline(orch *Orchestrator, prompts *prompt.Library, gov *ratelimit.Governor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		orch:       orch,
		prompts:    prompts,
		governor:   gov,
		thresholds: validate.DefaultThresholds(),
		callerPreset: ratelimit.Preset{
			Name:        "extraction",
			Window:      time.Minute,
			MaxRequests: 10,
		},
		minTextLen: preprocess.DefaultMinLength,
		maxTokens:  4096,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes one document end to end. It returns an error only for
// infrastructure-level admission failures (caller quota, unreadable input,
// every provider failed); data-quality problems always come back as a
// well-typed record plus validation errors.
func (p *Pipeline) Run(ctx context.Context, req model.ExtractionRequest) (*model.Result, error) {
	requestID := uuid.NewString()

	task := req.TaskType
	if task == "" {
		task = model.TaskDocumentExtraction
	}

	if req.CallerID != "" {
		d := p.governor.CheckPreset(p.callerPreset, req.CallerID)
		if !d.Allowed {
			return nil, &QuotaError{
				Identifier: req.CallerID,
				RetryAfter: d.RetryAfter(p.now()),
			}
		}
	}

	clean := preprocess.Normalize(req.Text)
	if len(req.Images) == 0 && !preprocess.Readable(clean, p.minTextLen) {
		return nil, ErrDocumentUnreadable
	}

	tmpl := p.prompts.Select(clean, req.DocumentType)

	pres, err := p.orch.Extract(ctx, task, provider.Request{
		System:    tmpl.System,
		Prompt:    tmpl.Render(clean),
		Images:    req.Images,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	record := parse.Parse(pres.Raw)
	validationErrs := validate.Record(record, p.thresholds)
	decision := validate.Review(record, p.thresholds)

	zap.L().Info("extraction complete",
		zap.String("request_id", requestID),
		zap.String("provider", pres.Provider),
		zap.String("template", tmpl.Name),
		zap.Int64("latency_ms", pres.Latency.Milliseconds()),
		zap.Int("validation_errors", len(validationErrs)),
		zap.Bool("needs_review", decision.NeedsReview),
	)

	return &model.Result{
		RequestID:        requestID,
		Record:           *record,
		ValidationErrors: validationErrs,
		NeedsReview:      decision.NeedsReview,
		ReviewReasons:    decision.Reasons,
		ProviderUsed:     pres.Provider,
		LatencyMs:        pres.Latency.Milliseconds(),
	}, nil
}
