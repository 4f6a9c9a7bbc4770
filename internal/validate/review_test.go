package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/model"
)

func TestReview_AllGatesPass(t *testing.T) {
	rec := validRecord()
	rec.Confidence.Overall = 0.85
	rec.Confidence.Reference = 0.9

	decision := Review(rec, DefaultThresholds())

	assert.False(t, decision.NeedsReview)
	assert.Empty(t, decision.Reasons)
}

func TestReview_NoConfidenceBlock(t *testing.T) {
	rec := validRecord()
	rec.Confidence = nil

	decision := Review(rec, DefaultThresholds())

	assert.True(t, decision.NeedsReview)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "no confidence scores")
}

func TestReview_OverallBelowThreshold(t *testing.T) {
	// Structurally valid but 0.6 < 0.7: review is a stricter gate than
	// validation.
	rec := validRecord()
	rec.Confidence.Overall = 0.6

	require.Empty(t, Record(rec, DefaultThresholds()))

	decision := Review(rec, DefaultThresholds())
	assert.True(t, decision.NeedsReview)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "overall confidence 0.60")
}

func TestReview_ReferenceConfidenceStricterGate(t *testing.T) {
	rec := validRecord()
	rec.Confidence.Overall = 0.9
	rec.Confidence.Reference = 0.55

	decision := Review(rec, DefaultThresholds())
	assert.True(t, decision.NeedsReview)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "reference confidence")
}

func TestReview_EmptyCriticalFieldsIgnoreConfidence(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rec *model.ExtractionRecord)
		want   string
	}{
		{"empty title", func(rec *model.ExtractionRecord) { rec.Title = "" }, "title is empty"},
		{"empty organization", func(rec *model.ExtractionRecord) { rec.Organization = "" }, "organization is empty"},
		{"empty date", func(rec *model.ExtractionRecord) { rec.ClosingDate = "" }, "closing date is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			// Provider is fully confident about the blank field.
			rec.Confidence.Overall = 0.99
			rec.Confidence.Reference = 0.99
			tt.mutate(rec)

			decision := Review(rec, DefaultThresholds())
			assert.True(t, decision.NeedsReview)
			require.Len(t, decision.Reasons, 1)
			assert.Contains(t, decision.Reasons[0], tt.want)
		})
	}
}

func TestReview_MultipleReasonsAccumulate(t *testing.T) {
	rec := validRecord()
	rec.Title = ""
	rec.Confidence.Overall = 0.2
	rec.Confidence.Reference = 0.2

	decision := Review(rec, DefaultThresholds())
	assert.True(t, decision.NeedsReview)
	assert.Len(t, decision.Reasons, 3)
}

func TestReview_Deterministic(t *testing.T) {
	rec := validRecord()
	rec.Confidence.Overall = 0.6

	first := Review(rec, DefaultThresholds())
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Review(rec, DefaultThresholds()))
	}
}
