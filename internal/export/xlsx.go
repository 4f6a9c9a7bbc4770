// Package export writes extraction results to spreadsheet files for the
// review team.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/docpipe/internal/model"
)

var summaryHeader = []string{
	"Request ID", "Reference", "Title", "Organization", "Closing Date",
	"Line Items", "Provider", "Latency (ms)", "Needs Review",
	"Review Reasons", "Validation Errors", "Notes",
}

var lineItemHeader = []string{"Request ID", "Reference", "Description", "Quantity", "Unit"}

// WriteXLSX writes results to an XLSX workbook with a summary sheet and a
// line-items sheet.
func WriteXLSX(path string, results []model.Result) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Extractions")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	items, err := f.AddSheet("Line Items")
	if err != nil {
		return eris.Wrap(err, "xlsx: add line items sheet")
	}

	addStringRow(summary, summaryHeader)
	addStringRow(items, lineItemHeader)

	for i := range results {
		res := &results[i]
		rec := res.Record

		row := summary.AddRow()
		row.AddCell().SetString(res.RequestID)
		row.AddCell().SetString(rec.Reference)
		row.AddCell().SetString(rec.Title)
		row.AddCell().SetString(rec.Organization)
		row.AddCell().SetString(rec.ClosingDate)
		row.AddCell().SetInt(len(rec.LineItems))
		row.AddCell().SetString(res.ProviderUsed)
		row.AddCell().SetInt64(res.LatencyMs)
		row.AddCell().SetBool(res.NeedsReview)
		row.AddCell().SetString(strings.Join(res.ReviewReasons, "; "))
		row.AddCell().SetString(strings.Join(res.ValidationErrors, "; "))
		row.AddCell().SetString(rec.Notes)

		for _, item := range rec.LineItems {
			ir := items.AddRow()
			ir.AddCell().SetString(res.RequestID)
			ir.AddCell().SetString(rec.Reference)
			ir.AddCell().SetString(item.Description)
			ir.AddCell().SetInt(item.Quantity)
			ir.AddCell().SetString(item.Unit)
		}
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
