// Package ocr converts scanned documents (PDFs) to text before they enter
// the extraction pipeline.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/config"
)

// Converter turns a PDF file into plain text suitable for normalization.
type Converter interface {
	ToText(ctx context.Context, pdfPath string) (string, error)
}

// NewConverter creates a Converter based on config. The local converter
// shells out to pdftotext; the mistral converter calls the Mistral OCR API.
func NewConverter(cfg config.OCRConfig, mistralKey string) (Converter, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if mistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires a mistral API key")
		}
		return NewMistralOCR(mistralKey), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
