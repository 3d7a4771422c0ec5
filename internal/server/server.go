// Package server exposes the QA pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sopqa/internal/domain"
	"sopqa/internal/logger"
	"sopqa/internal/metrics"
	"sopqa/internal/port"
	"sopqa/internal/usecase"
)

// Server serves the JSON API and the Prometheus scrape endpoint.
type Server struct {
	pipeline *usecase.Pipeline
	loader   port.DocumentLoader
	docsDir  string
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	httpSrv  *http.Server
}

func New(pipeline *usecase.Pipeline, loader port.DocumentLoader, docsDir, addr string, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		pipeline: pipeline,
		loader:   loader,
		docsDir:  docsDir,
		metrics:  m,
		gatherer: gatherer,
		log:      logger.Component("server"),
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed so tests can drive the API
// through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.instrument("/api/status", s.handleStatus))
	mux.HandleFunc("POST /api/ingest", s.instrument("/api/ingest", s.handleIngest))
	mux.HandleFunc("POST /api/ask", s.instrument("/api/ask", s.handleAsk))
	mux.HandleFunc("GET /api/sources", s.instrument("/api/sources", s.handleSources))
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		requestID := uuid.NewString()

		next(rec, r)

		took := time.Since(started)
		s.metrics.ObserveHTTP(path, strconv.Itoa(rec.status), took)
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", path).
			Int("status", rec.status).
			Dur("took", took).
			Msg("request")
	}
}

type statusResponse struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
	Documents int    `json:"documents"`
	Passages  int    `json:"passages"`
	Stale     bool   `json:"stale"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.pipeline.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		State:     st.State.String(),
		LastError: st.LastError,
		Documents: st.Documents,
		Passages:  st.Passages,
		Stale:     st.Stale,
	})
}

type ingestRequest struct {
	Documents []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"documents"`
}

type ingestResponse struct {
	DocumentsProcessed int `json:"documents_processed"`
	PassagesCreated    int `json:"passages_created"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var docs []domain.Document

	if r.ContentLength != 0 {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "", domain.ErrInvalidInput)
			return
		}
		for _, d := range req.Documents {
			docs = append(docs, domain.Document{ID: d.ID, Text: d.Text})
		}
	}
	if len(docs) == 0 {
		loaded, err := s.loader.Load(s.docsDir)
		if err != nil {
			s.writeError(w, "loading documents", err)
			return
		}
		docs = loaded
	}

	res, err := s.pipeline.Ingest(r.Context(), docs)
	if err != nil {
		s.writeError(w, "ingestion", err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		DocumentsProcessed: res.DocumentsProcessed,
		PassagesCreated:    res.PassagesCreated,
	})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "", domain.ErrInvalidInput)
		return
	}

	answer, err := s.pipeline.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, "answering question", err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	sources, err := s.pipeline.ListSources()
	if err != nil {
		s.writeError(w, "listing sources", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sources": sources})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps a domain error to an HTTP status and a safe message.
// Provider details stay in the log; they never reach the client.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	kind := domain.ErrorKind(err)

	var status int
	var message string
	switch kind {
	case "invalid_input":
		status, message = http.StatusBadRequest, "invalid request"
	case "build_in_progress":
		status, message = http.StatusConflict, "an ingestion run is already active"
	case "index_not_ready":
		status, message = http.StatusServiceUnavailable, "no index is ready, run ingestion first"
	case "rate_limited":
		status, message = http.StatusServiceUnavailable, "provider rate limit reached, retry later"
	case "auth_failure":
		status, message = http.StatusBadGateway, "provider rejected the configured credentials"
	case "embedding_unavailable", "model_unavailable", "malformed_response":
		status, message = http.StatusBadGateway, "upstream provider error"
	default:
		status, message = http.StatusInternalServerError, "internal error"
	}

	s.log.Error().Str("op", op).Str("kind", kind).Err(err).Msg("request failed")
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
