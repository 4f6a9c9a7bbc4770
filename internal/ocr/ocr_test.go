package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/config"
	"github.com/sells-group/docpipe/internal/resilience"
)

func TestNewConverter_Local(t *testing.T) {
	c, err := NewConverter(config.OCRConfig{Provider: "local", PdfToTextPath: "/usr/bin/pdftotext"}, "")
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, c)
}

func TestNewConverter_DefaultIsLocal(t *testing.T) {
	c, err := NewConverter(config.OCRConfig{}, "")
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, c)
}

func TestNewConverter_MistralMissingKey(t *testing.T) {
	_, err := NewConverter(config.OCRConfig{Provider: "mistral"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires")
}

func TestNewConverter_MistralWithKey(t *testing.T) {
	c, err := NewConverter(config.OCRConfig{Provider: "mistral"}, "test-key")
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, c)
}

func TestNewConverter_UnknownProvider(t *testing.T) {
	_, err := NewConverter(config.OCRConfig{Provider: "tesseract"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestPdfToText_BinPathDefault(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPdfToText("").binPath)
	assert.Equal(t, "/custom/pdftotext", NewPdfToText("/custom/pdftotext").binPath)
}

func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))
	return path
}

func TestMistralOCR_JoinsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ocrRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, mistralOCRModel, req.Model)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		json.NewEncoder(w).Encode(ocrResponse{Pages: []ocrPage{
			{Index: 0, Markdown: "# Invitation to Bid"},
			{Index: 1, Markdown: "Lot 1: forty desks"},
		}})
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", WithEndpoint(srv.URL))
	text, err := m.ToText(context.Background(), writeTestPDF(t))
	require.NoError(t, err)
	assert.Equal(t, "# Invitation to Bid\n\nLot 1: forty desks", text)
}

func TestMistralOCR_RetryableStatusIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", WithEndpoint(srv.URL))
	_, err := m.ToText(context.Background(), writeTestPDF(t))
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestMistralOCR_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", WithEndpoint(srv.URL))
	_, err := m.ToText(context.Background(), writeTestPDF(t))
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestMistralOCR_MissingFile(t *testing.T) {
	m := NewMistralOCR("test-key")
	_, err := m.ToText(context.Background(), "/nonexistent.pdf")
	assert.Error(t, err)
}
