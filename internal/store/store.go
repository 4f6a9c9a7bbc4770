// Package store persists extraction results for audit and review queues.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/model"
)

// ExtractionFilter specifies criteria for listing stored extractions.
type ExtractionFilter struct {
	NeedsReview *bool  `json:"needs_review,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction results.
type Store interface {
	SaveExtraction(ctx context.Context, res *model.Result) error
	GetExtraction(ctx context.Context, requestID string) (*model.Result, error)
	ListExtractions(ctx context.Context, filter ExtractionFilter) ([]model.Result, error)

	Migrate(ctx context.Context) error
	Close() error
}

// New opens a store for the configured driver.
func New(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
