// Package model defines the data types exchanged between pipeline stages.
package model

// TaskType identifies the kind of completion work a request needs.
type TaskType string

const (
	// TaskDocumentExtraction is text-in, structured-record-out extraction.
	TaskDocumentExtraction TaskType = "documentExtraction"
	// TaskVision extracts from page images instead of raw text.
	TaskVision TaskType = "vision"
)

// Capability returns the provider capability tag required to serve this task.
func (t TaskType) Capability() string {
	switch t {
	case TaskVision:
		return "vision"
	default:
		return "extraction"
	}
}

// DocumentType hints which prompt template family applies.
type DocumentType string

const (
	DocTender       DocumentType = "tender"
	DocInvoice      DocumentType = "invoice"
	DocDeliveryNote DocumentType = "deliveryNote"
)

// PageImage is a single page rendered as a base64-encoded image.
type PageImage struct {
	MediaType string `json:"media_type"` // e.g. "image/png"
	Data      string `json:"data"`       // base64 payload
}

// ExtractionRequest is the inbound unit of work for the pipeline.
type ExtractionRequest struct {
	Text         string       `json:"text,omitempty"`
	Images       []PageImage  `json:"images,omitempty"`
	TaskType     TaskType     `json:"task_type"`
	DocumentType DocumentType `json:"document_type,omitempty"`
	// CallerID keys caller-level rate accounting. Empty skips the
	// caller-level admission check (provider quotas still apply).
	CallerID string `json:"caller_id,omitempty"`
}

// LineItem is a single goods/services line extracted from a document.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
}

// ConfidenceBlock carries the provider's certainty per tracked field,
// each score in [0,1].
type ConfidenceBlock struct {
	Overall      float64 `json:"overall"`
	Reference    float64 `json:"reference"`
	Title        float64 `json:"title"`
	Organization float64 `json:"organization"`
	ClosingDate  float64 `json:"closing_date"`
}

// ExtractionRecord is the structured output of one extraction. It is created
// fresh per request; validation and review results annotate the surrounding
// Result, never the record itself.
type ExtractionRecord struct {
	Reference    string           `json:"reference"`
	Title        string           `json:"title"`
	Organization string           `json:"organization"`
	ClosingDate  string           `json:"closing_date,omitempty"` // ISO calendar date
	LineItems    []LineItem       `json:"line_items"`
	Notes        string           `json:"notes,omitempty"`
	Confidence   *ConfidenceBlock `json:"confidence,omitempty"`
}

// ReviewDecision says whether a record must be routed to manual review,
// and why.
type ReviewDecision struct {
	NeedsReview bool     `json:"needs_review"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Result is what the caller receives for every admitted request: always a
// well-typed record plus validation findings, never a data-quality error.
type Result struct {
	RequestID        string           `json:"request_id"`
	Record           ExtractionRecord `json:"record"`
	ValidationErrors []string         `json:"validation_errors"`
	NeedsReview      bool             `json:"needs_review"`
	ReviewReasons    []string         `json:"review_reasons,omitempty"`
	ProviderUsed     string           `json:"provider_used"`
	LatencyMs        int64            `json:"latency_ms"`
}
