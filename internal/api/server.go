// Package api exposes querying and ingestion over HTTP. Queries run inline;
// ingestion runs asynchronously with a poll endpoint for the run status.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgallion1/corpusrag/internal/config"
	"github.com/dgallion1/corpusrag/internal/ingest"
	"github.com/dgallion1/corpusrag/internal/query"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runTTL is how long finished runs remain pollable.
const runTTL = time.Hour

// Ingester triggers one ingestion pass.
type Ingester interface {
	Run(ctx context.Context, mode ingest.Mode) (ingest.Summary, error)
}

// Answerer resolves one query.
type Answerer interface {
	Answer(ctx context.Context, req query.Request) (query.Result, error)
}

// Server is the corpusrag HTTP API server.
type Server struct {
	router   chi.Router
	ingester Ingester
	answerer Answerer
	runs     *RunStore
	metrics  *Metrics
	log      *slog.Logger
	cfg      config.Config

	// Serializes ingestion passes; a second trigger while one is running
	// gets a 409 instead of queueing.
	ingestMu sync.Mutex
}

// NewServer creates and configures the HTTP server.
func NewServer(ingester Ingester, answerer Answerer, log *slog.Logger, cfg config.Config) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		ingester: ingester,
		answerer: answerer,
		runs:     NewRunStore(runTTL),
		metrics:  NewMetrics(reg),
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes(reg)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes(reg *prometheus.Registry) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/query", s.handleQuery)
		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{runID}", s.handleIngestStatus)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// queryPayload is the JSON body of POST /api/query. Absent options fall back
// to the configured defaults; per_source_limit is a pointer so an explicit 0
// (unlimited) stays distinguishable from the field being omitted.
type queryPayload struct {
	Question        string `json:"question"`
	File            string `json:"file,omitempty"`
	Type            string `json:"type,omitempty"`
	FetchK          int    `json:"fetch_k,omitempty"`
	K               int    `json:"k,omitempty"`
	MaxContextChars int    `json:"max_context_chars,omitempty"`
	PerSourceLimit  *int   `json:"per_source_limit,omitempty"`
	Model           string `json:"model,omitempty"`
	ShowSnippets    bool   `json:"show_snippets,omitempty"`
	SnippetChars    int    `json:"snippet_chars,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var payload queryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := query.Request{
		Question:        payload.Question,
		File:            payload.File,
		Modality:        payload.Type,
		FetchK:          payload.FetchK,
		K:               payload.K,
		MaxContextChars: payload.MaxContextChars,
		PerSourceLimit:  s.cfg.PerSourceLimit,
		Model:           payload.Model,
		ShowSnippets:    payload.ShowSnippets,
		SnippetChars:    payload.SnippetChars,
	}
	if req.FetchK == 0 {
		req.FetchK = s.cfg.DefaultFetchK
	}
	if req.K == 0 {
		req.K = s.cfg.DefaultK
	}
	if req.MaxContextChars == 0 {
		req.MaxContextChars = s.cfg.MaxContextChars
	}
	if payload.PerSourceLimit != nil {
		req.PerSourceLimit = *payload.PerSourceLimit
	}

	if err := req.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.metrics.QueryErrorsTotal.Inc()
		s.log.Error("query failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.metrics.QueriesTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// ingestPayload is the JSON body of POST /api/ingest.
type ingestPayload struct {
	Reset  bool `json:"reset,omitempty"`
	Rescan bool `json:"rescan,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload ingestPayload
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if payload.Reset && payload.Rescan {
		jsonError(w, "reset and rescan are mutually exclusive", http.StatusBadRequest)
		return
	}

	mode := ingest.ModeIncremental
	switch {
	case payload.Reset:
		mode = ingest.ModeReset
	case payload.Rescan:
		mode = ingest.ModeRescan
	}

	if !s.ingestMu.TryLock() {
		jsonError(w, "an ingestion run is already in progress", http.StatusConflict)
		return
	}

	run := NewRun(mode)
	s.runs.Put(run)
	s.runs.Cleanup()

	go func() {
		defer s.ingestMu.Unlock()
		run.SetRunning()
		sum, err := s.ingester.Run(context.Background(), mode)
		if err != nil {
			run.Fail(err)
			s.metrics.IngestRunsTotal.WithLabelValues(string(StatusFailed)).Inc()
			s.log.Error("ingestion run failed", "run_id", run.ID, "error", err)
			return
		}
		run.Complete(sum)
		s.metrics.IngestRunsTotal.WithLabelValues(string(StatusCompleted)).Inc()
		s.metrics.FilesIndexedTotal.Add(float64(sum.Indexed))
		s.metrics.FilesFailedTotal.Add(float64(sum.Failed))
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   run.ID,
		"mode":     run.Mode,
		"status":   run.Status,
		"poll_url": "/api/ingest/" + run.ID,
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.runs.Get(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Snapshot())
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
