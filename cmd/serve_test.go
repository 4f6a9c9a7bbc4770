package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/extract"
	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/provider"
	"github.com/sells-group/docpipe/internal/ratelimit"
	"github.com/sells-group/docpipe/internal/resilience"
	"github.com/sells-group/docpipe/internal/store"
)

// stubRunner returns a canned result or error.
type stubRunner struct {
	result *model.Result
	err    error
}

func (s *stubRunner) Run(_ context.Context, _ model.ExtractionRequest) (*model.Result, error) {
	return s.result, s.err
}

func newTestAPI(t *testing.T, runner documentRunner) *apiServer {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	reg := provider.NewRegistry()
	reg.Register(provider.Descriptor{
		Name: "haiku", Family: "anthropic", Model: "claude-haiku-4-5-20251001",
		Priority: 1, Enabled: true, Capabilities: []string{"extraction"},
	})

	return &apiServer{
		runner:     runner,
		store:      st,
		registry:   reg,
		breakers:   resilience.NewBreakers(resilience.DefaultBreakerConfig()),
		governor:   ratelimit.NewGovernor(),
		readPreset: ratelimit.Preset{Name: "read", Window: time.Minute, MaxRequests: 100},
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t, &stubRunner{})
	rec := httptest.NewRecorder()

	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleExtract_Success(t *testing.T) {
	result := &model.Result{
		RequestID:        "req-1",
		Record:           model.ExtractionRecord{Reference: "T-2026-014"},
		ValidationErrors: []string{},
		ProviderUsed:     "haiku",
	}
	api := newTestAPI(t, &stubRunner{result: result})

	body := strings.NewReader(`{"text": "Invitation to bid, Ministry of Works, tender T-2026-014."}`)
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "T-2026-014", got.Record.Reference)

	// The result is persisted as a side effect.
	saved, err := api.store.GetExtraction(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "haiku", saved.ProviderUsed)
}

func TestHandleExtract_BadBody(t *testing.T) {
	api := newTestAPI(t, &stubRunner{})

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExtract_Unreadable(t *testing.T) {
	api := newTestAPI(t, &stubRunner{err: extract.ErrDocumentUnreadable})

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"text": "x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreadable")
}

func TestHandleExtract_Quota(t *testing.T) {
	api := newTestAPI(t, &stubRunner{err: &extract.QuotaError{Identifier: "user-1", RetryAfter: 30 * time.Second}})

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"text": "doc"}`)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleExtract_AllProvidersFailed(t *testing.T) {
	api := newTestAPI(t, &stubRunner{err: &extract.AllProvidersFailedError{Failures: []string{"p1: timeout"}}})

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"text": "doc"}`)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "p1: timeout")
}

func TestHandleProviders(t *testing.T) {
	api := newTestAPI(t, &stubRunner{})

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []providerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "haiku", got[0].Name)
	assert.Equal(t, "closed", got[0].Circuit)
}

func TestHandleListExtractions_ReadLimit(t *testing.T) {
	api := newTestAPI(t, &stubRunner{})
	api.readPreset = ratelimit.Preset{Name: "read", Window: time.Minute, MaxRequests: 2}

	h := api.routes()
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/extractions", nil)
		req.Header.Set("X-Caller-ID", "reader-1")
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/extractions", nil)
	req.Header.Set("X-Caller-ID", "reader-1")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandleGetExtraction_NotFound(t *testing.T) {
	api := newTestAPI(t, &stubRunner{})

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
