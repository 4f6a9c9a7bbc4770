package prompt

import "github.com/sells-group/docpipe/internal/model"

const extractionSystem = `You are a document extraction engine. You read business documents and return a single JSON object, with no commentary and no markdown fences. The JSON shape is:
{
  "reference": "document reference or number",
  "title": "document title",
  "organization": "issuing party",
  "closing_date": "YYYY-MM-DD or empty string",
  "line_items": [{"description": "...", "quantity": 1, "unit": "..."}],
  "notes": "anything that did not fit elsewhere",
  "confidence": {"overall": 0.0, "reference": 0.0, "title": 0.0, "organization": 0.0, "closing_date": 0.0}
}
Confidence scores are your own certainty per field, between 0.0 and 1.0. Use an empty string for fields you cannot find; never invent values.`

const genericUser = `Extract the structured record from the following document:

{{document}}`

// govTenderIndicators are issuing-authority signals that mark a public-sector
// tender notice regardless of the caller's document-type hint.
var govTenderIndicators = []string{
	"ministry of",
	"department of",
	"directorate of",
	"government of",
	"municipality of",
	"public procurement",
	"tender board",
	"invitation to bid",
	"request for proposal",
}

// Defaults returns the compiled-in template library. A YAML file configured
// under prompts.file replaces it wholesale.
func Defaults() *Library {
	return &Library{
		Templates: []Template{
			{
				Name:         "public-tender",
				DocumentType: model.DocTender,
				Indicators:   govTenderIndicators,
				System:       extractionSystem,
				User: `This document is a public-sector tender notice. The reference is usually labeled "Tender No", "RFP No" or similar; the organization is the issuing authority; the closing date is the bid submission deadline. Extract the structured record:

{{document}}`,
			},
			{
				Name:         "generic-tender",
				DocumentType: model.DocTender,
				System:       extractionSystem,
				User:         genericUser,
			},
			{
				Name:         "generic-invoice",
				DocumentType: model.DocInvoice,
				System:       extractionSystem,
				User: `This document is an invoice. The reference is the invoice number, the organization is the issuing vendor, and the closing date is the payment due date if present. Extract the structured record:

{{document}}`,
			},
			{
				Name:         "generic-delivery-note",
				DocumentType: model.DocDeliveryNote,
				System:       extractionSystem,
				User: `This document is a delivery note. The reference is the delivery or dispatch number and the organization is the sender. Extract the structured record:

{{document}}`,
			},
		},
	}
}
