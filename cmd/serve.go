package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/extract"
	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/provider"
	"github.com/sells-group/docpipe/internal/ratelimit"
	"github.com/sells-group/docpipe/internal/resilience"
	"github.com/sells-group/docpipe/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			runner:   env.Pipeline,
			store:    env.Store,
			registry: env.Registry,
			breakers: env.Orchestrator.Breakers(),
			governor: env.Governor,
			readPreset: ratelimit.Preset{
				Name:        "read",
				Window:      time.Duration(cfg.RateLimit.Read.WindowSecs) * time.Second,
				MaxRequests: cfg.RateLimit.Read.MaxRequests,
			},
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// documentRunner is the pipeline surface the HTTP handlers need.
type documentRunner interface {
	Run(ctx context.Context, req model.ExtractionRequest) (*model.Result, error)
}

type apiServer struct {
	runner     documentRunner
	store      store.Store
	registry   *provider.Registry
	breakers   *resilience.Breakers
	governor   *ratelimit.Governor
	readPreset ratelimit.Preset
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Caller-ID"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/extract", s.handleExtract)
	r.Get("/providers", s.handleProviders)
	r.Get("/extractions", s.handleListExtractions)
	r.Get("/extractions/{id}", s.handleGetExtraction)

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req model.ExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CallerID == "" {
		req.CallerID = r.Header.Get("X-Caller-ID")
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeExtractError(w, err)
		return
	}

	if err := s.store.SaveExtraction(r.Context(), result); err != nil {
		zap.L().Warn("failed to persist extraction",
			zap.String("request_id", result.RequestID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, result)
}

// writeExtractError maps pipeline errors onto HTTP statuses: quota to 429
// with Retry-After, unreadable input to 400, provider exhaustion to 502.
func (s *apiServer) writeExtractError(w http.ResponseWriter, err error) {
	if qe, ok := extract.AsQuota(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(qe.RetryAfter.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, qe.Error())
		return
	}
	if errors.Is(err, extract.ErrDocumentUnreadable) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var agg *extract.AllProvidersFailedError
	if errors.As(err, &agg) {
		writeError(w, http.StatusBadGateway, agg.Error())
		return
	}
	zap.L().Error("extraction request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// providerStatus is one row of the /providers snapshot.
type providerStatus struct {
	Name       string    `json:"name"`
	Family     string    `json:"family"`
	Model      string    `json:"model"`
	Priority   int       `json:"priority"`
	Enabled    bool      `json:"enabled"`
	Circuit    string    `json:"circuit"`
	UsageCount int64     `json:"usage_count"`
	LastUsed   time.Time `json:"last_used,omitzero"`
}

func (s *apiServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	if !s.admitRead(w, r) {
		return
	}

	snap := s.registry.Snapshot()
	out := make([]providerStatus, 0, len(snap))
	for _, d := range snap {
		out = append(out, providerStatus{
			Name:       d.Name,
			Family:     d.Family,
			Model:      d.Model,
			Priority:   d.Priority,
			Enabled:    d.Enabled,
			Circuit:    s.breakers.State(d.Name).String(),
			UsageCount: d.UsageCount,
			LastUsed:   d.LastUsed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	if !s.admitRead(w, r) {
		return
	}

	filter := store.ExtractionFilter{
		Reference: r.URL.Query().Get("reference"),
		Provider:  r.URL.Query().Get("provider"),
	}
	if v := r.URL.Query().Get("needs_review"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "needs_review must be a boolean")
			return
		}
		filter.NeedsReview = &b
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	results, err := s.store.ListExtractions(r.Context(), filter)
	if err != nil {
		zap.L().Error("list extractions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if results == nil {
		results = []model.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	if !s.admitRead(w, r) {
		return
	}

	result, err := s.store.GetExtraction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "extraction not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// admitRead applies the read-class rate preset keyed by caller header or
// remote address. Writes 429 and returns false on rejection.
func (s *apiServer) admitRead(w http.ResponseWriter, r *http.Request) bool {
	id := r.Header.Get("X-Caller-ID")
	if id == "" {
		id = r.RemoteAddr
	}

	d := s.governor.CheckPreset(s.readPreset, id)
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter(time.Now()).Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
