package validate

import (
	"fmt"

	"github.com/sells-group/docpipe/internal/model"
)

// Review decides whether a record must be routed to manual review before it
// is trusted downstream. Pure and deterministic: no network, no clock.
//
// A record needs review when any of the following holds:
//   - no confidence block is attached,
//   - overall confidence is below ReviewOverall,
//   - reference confidence is below ReviewReference,
//   - title, organization, or closing date is empty, regardless of its
//     stated confidence (a provider can be confident about a field it
//     hallucinated as blank).
func Review(rec *model.ExtractionRecord, th Thresholds) model.ReviewDecision {
	var reasons []string

	conf := rec.Confidence
	if conf == nil {
		reasons = append(reasons, "no confidence scores were reported")
	} else {
		if conf.Overall < th.ReviewOverall {
			reasons = append(reasons, fmt.Sprintf("overall confidence %.2f is below %.2f", conf.Overall, th.ReviewOverall))
		}
		if conf.Reference < th.ReviewReference {
			reasons = append(reasons, fmt.Sprintf("reference confidence %.2f is below %.2f", conf.Reference, th.ReviewReference))
		}
	}

	if rec.Title == "" {
		reasons = append(reasons, "title is empty")
	}
	if rec.Organization == "" {
		reasons = append(reasons, "organization is empty")
	}
	if rec.ClosingDate == "" {
		reasons = append(reasons, "closing date is empty")
	}

	return model.ReviewDecision{
		NeedsReview: len(reasons) > 0,
		Reasons:     reasons,
	}
}
