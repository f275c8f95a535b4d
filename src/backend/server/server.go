// Package server exposes the redaction processor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/hannes/yaak-redact/src/backend/config"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/processor"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	processor  *processor.Processor
	manager    *pii.EngineManager
	limiter    *clientLimiter
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new server instance. The download folder is created
// if it does not exist.
func NewServer(cfg *config.Config, proc *processor.Processor, manager *pii.EngineManager, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Server.DownloadFolder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download folder: %w", err)
	}

	s := &Server{
		config:    cfg,
		processor: proc,
		manager:   manager,
		logger:    logger.With("component", "server"),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = newClientLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("POST /api/analyze/text", s.handleAnalyzeText)
	mux.HandleFunc("POST /api/analyze/{kind}", s.handleAnalyzeFile)
	mux.HandleFunc("GET /api/download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.cors(h)
	h = s.recoverPanics(h)
	if s.config.Logging.LogRequests {
		h = s.logRequests(h)
	}
	return h
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	journal := "disabled"
	if s.processor.Jobs() != nil {
		journal = "in-memory"
		if s.config.Database.Enabled {
			journal = "postgres"
		}
	}
	s.logger.Info("starting redaction service",
		"port", s.config.Server.Port,
		"detector", s.config.Engine.Detector,
		"anonymizer", s.config.Engine.Anonymizer,
		"download_folder", s.config.Server.DownloadFolder,
		"journal", journal)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestContext bounds document processing by the configured deadline.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.Server.RequestTimeoutSec <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.config.Server.RequestTimeoutSec)*time.Second)
}
