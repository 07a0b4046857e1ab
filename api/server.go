// Package api provides the HTTP server for the cost sync: the status page, the stored
// cost read endpoint, the insert-only ingestion trigger and health plumbing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"aws-cost-sync/db/ingestion"
	"aws-cost-sync/pkg/focus"
)

// CostReader is the read side of the cost store
type CostReader interface {
	ListDocuments(ctx context.Context) ([]focus.Document, error)
	Ping(ctx context.Context) error
}

// Ingester runs one insert-only ingestion
type Ingester interface {
	Ingest(ctx context.Context) (*ingestion.IngestResult, error)
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	store      CostReader
	ingester   Ingester
	config     *Config
	logger     zerolog.Logger
	startTime  time.Time
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Version        string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		RequestTimeout: 90 * time.Second,
		Version:        "dev",
	}
}

// NewServer creates a new API server
func NewServer(store CostReader, ingester Ingester, config *Config, logger zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		store:     store,
		ingester:  ingester,
		config:    config,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/", s.handleHome)
	r.Get("/fetch-costs", s.handleFetchCosts)
	r.Get("/ingest-costs", s.handleIngestCosts)
	r.Post("/ingest-costs", s.handleIngestCosts)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info().Int("port", s.config.Port).Str("version", s.config.Version).Msg("Starting cost sync API server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// =============================================================================
// COST ENDPOINTS
// =============================================================================

// FetchCostsResponse is the read endpoint envelope
type FetchCostsResponse struct {
	Success bool             `json:"success"`
	Data    []focus.Document `json:"data"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleFetchCosts(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error reading stored costs")
		s.fetchCostsError(w, err.Error())
		return
	}

	if docs == nil {
		docs = []focus.Document{}
	}

	body, err := encodeJSON(FetchCostsResponse{Success: true, Data: docs})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int("documents", len(docs)).Msg("Error encoding stored costs")
		s.fetchCostsError(w, "failed to encode stored costs: "+err.Error())
		return
	}
	writeBody(w, http.StatusOK, body)
}

func (s *Server) fetchCostsError(w http.ResponseWriter, message string) {
	s.jsonResponse(w, http.StatusInternalServerError, FetchCostsResponse{
		Success: false,
		Error:   message,
		Data:    []focus.Document{},
	})
}

// IngestCostsResponse is returned by the ingestion trigger
type IngestCostsResponse struct {
	Message         string `json:"message"`
	RecordsInserted int    `json:"records_inserted"`
}

func (s *Server) handleIngestCosts(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingester.Ingest(r.Context())
	switch {
	case errors.Is(err, ingestion.ErrNoCostData):
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"message": "No cost data found"})
	case err != nil:
		s.jsonError(w, http.StatusInternalServerError, err.Error())
	default:
		s.jsonResponse(w, http.StatusOK, IngestCostsResponse{
			Message:         "AWS costs fetched and stored successfully",
			RecordsInserted: result.RecordsInserted,
		})
	}
}

// =============================================================================
// STATUS ENDPOINTS
// =============================================================================

const homePage = `<html>
<head>
    <title>DevOps Dashboard</title>
    <style>
        body {
            background: linear-gradient(to right, #0f2027, #203a43, #2c5364);
            color: #fff;
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            text-align: center;
            padding-top: 100px;
        }
    </style>
</head>
<body>
    <h1>DevOps Dashboard Backend Running</h1>
    <p>AWS cost sync is up. Stored costs are served at <a href="/fetch-costs">/fetch-costs</a>.</p>
</body>
</html>
`

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(homePage))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "aws-cost-sync",
		"version": s.config.Version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Store not ready")
		s.jsonError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// =============================================================================
// HELPERS
// =============================================================================

// jsonResponse encodes before writing the status so an unencodable value becomes a 500
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	body, err := encodeJSON(data)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
		writeBody(w, http.StatusInternalServerError, []byte(`{"error":"failed to encode response"}`+"\n"))
		return
	}
	writeBody(w, status, body)
}

func encodeJSON(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
