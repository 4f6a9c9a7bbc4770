// Package validate checks extraction records for structural completeness and
// confidence, and decides whether a record needs human review. Both
// operations are read-only projections over the record.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/docpipe/internal/model"
)

// Thresholds holds the confidence gates. The validation threshold and the
// two review thresholds are distinct, independently tunable knobs: a record
// can pass validation yet still be flagged for review.
type Thresholds struct {
	// LowConfidence marks a score as a validation error.
	LowConfidence float64
	// ReviewOverall flags the record for review when overall confidence
	// falls below it.
	ReviewOverall float64
	// ReviewReference is stricter than ReviewOverall because the reference
	// is the dedup key downstream and must be highly trustworthy.
	ReviewReference float64
}

// DefaultThresholds returns the reference gate values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowConfidence:   0.5,
		ReviewOverall:   0.7,
		ReviewReference: 0.6,
	}
}

const dateLayout = "2006-01-02"

// Record runs every structural and confidence check and returns one
// human-readable error per problem. All checks are evaluated; nothing
// short-circuits, so the caller sees every problem at once. An empty slice
// means the record is structurally valid.
func Record(rec *model.ExtractionRecord, th Thresholds) []string {
	var errs []string

	if rec.Reference == "" {
		errs = append(errs, "reference number is missing")
	}
	if rec.Title == "" {
		errs = append(errs, "title is missing")
	}
	if rec.Organization == "" {
		errs = append(errs, "issuing organization is missing")
	}
	if rec.ClosingDate != "" {
		if _, err := time.Parse(dateLayout, rec.ClosingDate); err != nil {
			errs = append(errs, fmt.Sprintf("closing date %q is not a valid YYYY-MM-DD date", rec.ClosingDate))
		}
	}
	if len(rec.LineItems) == 0 {
		errs = append(errs, "no line items were extracted")
	}
	for i, item := range rec.LineItems {
		if item.Quantity <= 0 {
			errs = append(errs, fmt.Sprintf("Item %d has a non-positive quantity (%d)", i+1, item.Quantity))
		}
	}

	if low := lowScores(rec.Confidence, th.LowConfidence); len(low) > 0 {
		errs = append(errs, fmt.Sprintf("low confidence (< %.2f) on: %s", th.LowConfidence, strings.Join(low, ", ")))
	}

	return errs
}

func lowScores(conf *model.ConfidenceBlock, threshold float64) []string {
	if conf == nil {
		return nil
	}

	var low []string
	for _, s := range []struct {
		name  string
		score float64
	}{
		{"overall", conf.Overall},
		{"reference", conf.Reference},
		{"title", conf.Title},
		{"organization", conf.Organization},
		{"closing_date", conf.ClosingDate},
	} {
		if s.score < threshold {
			low = append(low, s.name)
		}
	}
	return low
}
