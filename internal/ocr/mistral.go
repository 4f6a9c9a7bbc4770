package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/resilience"
)

const (
	mistralOCREndpoint = "https://api.mistral.ai/v1/ocr"
	mistralOCRModel    = "pixtral-large-latest"
)

// MistralOCR converts PDFs via the Mistral OCR API. Each page comes back as
// markdown; pages are joined with blank lines so the normalizer sees one
// continuous document.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// MistralOption configures the converter.
type MistralOption func(*MistralOCR)

// WithModel overrides the OCR model.
func WithModel(model string) MistralOption {
	return func(m *MistralOCR) { m.model = model }
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) MistralOption {
	return func(m *MistralOCR) { m.endpoint = endpoint }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) MistralOption {
	return func(m *MistralOCR) { m.client = hc }
}

// NewMistralOCR creates a Mistral OCR converter.
func NewMistralOCR(apiKey string, opts ...MistralOption) *MistralOCR {
	m := &MistralOCR{
		apiKey:   apiKey,
		model:    mistralOCRModel,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

func (m *MistralOCR) ToText(ctx context.Context, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read PDF %s", pdfPath)
	}

	body, err := json.Marshal(ocrRequest{
		Model: m.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ocr: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody))
		if resilience.RetryableStatus(resp.StatusCode) {
			return "", resilience.Transient(err, resp.StatusCode)
		}
		return "", err
	}

	var out ocrResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", eris.Wrap(err, "ocr: unmarshal response")
	}

	var sb strings.Builder
	for i, page := range out.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}

	return sb.String(), nil
}
