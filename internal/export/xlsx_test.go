package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/docpipe/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	results := []model.Result{
		{
			RequestID: "req-1",
			Record: model.ExtractionRecord{
				Reference:    "T-2026-014",
				Title:        "Supply of office furniture",
				Organization: "Ministry of Works",
				ClosingDate:  "2026-04-15",
				LineItems: []model.LineItem{
					{Description: "Desks", Quantity: 40, Unit: "pcs"},
					{Description: "Chairs", Quantity: 80, Unit: "pcs"},
				},
			},
			ValidationErrors: []string{},
			ProviderUsed:     "haiku",
			LatencyMs:        840,
		},
		{
			RequestID: "req-2",
			Record: model.ExtractionRecord{
				Reference: "T-2026-015",
				Title:     "Road maintenance",
			},
			ValidationErrors: []string{"Missing organization name"},
			NeedsReview:      true,
			ReviewReasons:    []string{"organization is empty"},
			ProviderUsed:     "sonar",
			LatencyMs:        1200,
		},
	}

	require.NoError(t, WriteXLSX(path, results))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	summary := f.Sheets[0]
	assert.Equal(t, "Extractions", summary.Name)
	require.Len(t, summary.Rows, 3) // header + 2 results
	assert.Equal(t, "Request ID", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "T-2026-014", summary.Rows[1].Cells[1].String())
	assert.Equal(t, "Ministry of Works", summary.Rows[1].Cells[3].String())
	assert.Equal(t, "organization is empty", summary.Rows[2].Cells[9].String())
	assert.Equal(t, "Missing organization name", summary.Rows[2].Cells[10].String())

	items := f.Sheets[1]
	assert.Equal(t, "Line Items", items.Name)
	require.Len(t, items.Rows, 3) // header + 2 items from req-1
	assert.Equal(t, "Desks", items.Rows[1].Cells[2].String())
	assert.Equal(t, "80", items.Rows[2].Cells[3].String())
}

func TestWriteXLSX_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	require.NoError(t, WriteXLSX(path, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets[0].Rows, 1, "header row only")
}
