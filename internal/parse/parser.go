// Package parse decodes raw provider replies into extraction records. It
// never returns an error for data-quality reasons: malformed replies become
// a canonical failure record.
package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
)

// DefaultConfidence is substituted per field when a reply omits its
// confidence block, so downstream consumers never null-check confidence.
const DefaultConfidence = 0.7

// Sanitize strips markdown code-fence wrappers and surrounding whitespace
// from a raw reply.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json) and a trailing fence.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// flexInt tolerates quantities arriving as numbers, numeric strings, or
// floats.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("quantity %q is not numeric", s)
	}
	*f = flexInt(int(n))
	return nil
}

type rawLineItem struct {
	Description string  `json:"description"`
	Quantity    flexInt `json:"quantity"`
	Unit        string  `json:"unit"`
}

type rawRecord struct {
	Reference    string                 `json:"reference"`
	Title        string                 `json:"title"`
	Organization string                 `json:"organization"`
	ClosingDate  string                 `json:"closing_date"`
	LineItems    json.RawMessage        `json:"line_items"`
	Notes        string                 `json:"notes"`
	Confidence   *model.ConfidenceBlock `json:"confidence"`
}

// Parse decodes a raw provider reply into an ExtractionRecord. Array fields
// that are absent or not actually lists become empty lists; a missing
// confidence block becomes the default block; anything undecodable becomes
// the canonical failure record.
func Parse(raw string) *model.ExtractionRecord {
	s := Sanitize(raw)
	if s == "" {
		return FailureRecord("empty reply")
	}

	var rr rawRecord
	if err := json.Unmarshal([]byte(s), &rr); err != nil {
		zap.L().Warn("reply decode failed", zap.Error(err))
		return FailureRecord("malformed reply")
	}

	items := decodeLineItems(rr.LineItems)

	conf := rr.Confidence
	if conf == nil {
		conf = DefaultBlock()
	} else {
		clampBlock(conf)
	}

	return &model.ExtractionRecord{
		Reference:    strings.TrimSpace(rr.Reference),
		Title:        strings.TrimSpace(rr.Title),
		Organization: strings.TrimSpace(rr.Organization),
		ClosingDate:  strings.TrimSpace(rr.ClosingDate),
		LineItems:    items,
		Notes:        strings.TrimSpace(rr.Notes),
		Confidence:   conf,
	}
}

func decodeLineItems(raw json.RawMessage) []model.LineItem {
	if len(raw) == 0 {
		return []model.LineItem{}
	}

	var rawItems []rawLineItem
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		// Not a list; validation will flag the resulting emptiness.
		return []model.LineItem{}
	}

	items := make([]model.LineItem, 0, len(rawItems))
	for _, ri := range rawItems {
		items = append(items, model.LineItem{
			Description: strings.TrimSpace(ri.Description),
			Quantity:    int(ri.Quantity),
			Unit:        strings.TrimSpace(ri.Unit),
		})
	}
	return items
}

// DefaultBlock returns the midpoint confidence block substituted for replies
// that omit confidence entirely.
func DefaultBlock() *model.ConfidenceBlock {
	return &model.ConfidenceBlock{
		Overall:      DefaultConfidence,
		Reference:    DefaultConfidence,
		Title:        DefaultConfidence,
		Organization: DefaultConfidence,
		ClosingDate:  DefaultConfidence,
	}
}

// FailureRecord is the canonical well-typed record returned when a reply
// cannot be decoded.
func FailureRecord(reason string) *model.ExtractionRecord {
	return &model.ExtractionRecord{
		LineItems:  []model.LineItem{},
		Notes:      fmt.Sprintf("Extraction failed: %s. Please enter data manually.", reason),
		Confidence: &model.ConfidenceBlock{},
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampBlock(b *model.ConfidenceBlock) {
	b.Overall = clamp(b.Overall)
	b.Reference = clamp(b.Reference)
	b.Title = clamp(b.Title)
	b.Organization = clamp(b.Organization)
	b.ClosingDate = clamp(b.ClosingDate)
}
