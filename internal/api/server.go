// Package api exposes Heron's HTTP surface: review ingestion, score
// computation and retrieval, and threshold-profile management.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/ingest"
	"github.com/opensource-trust/heron/internal/profile"
	"github.com/opensource-trust/heron/internal/rules"
	"github.com/opensource-trust/heron/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, ingestEngine *ingest.Engine, scoringService *scoring.Service, profiles *profile.Provider, engine *rules.Engine, version string) *Server {
	handler := NewHandler(repo, cache, ingestEngine, scoringService, profiles, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Review ingestion
	router.Post("/reviews", handler.IngestReview)

	// Per-product reviews and scores
	router.Route("/products/{productID}", func(r chi.Router) {
		r.Get("/reviews", handler.ListReviews)
		r.Post("/score", handler.ComputeScore)
		r.Get("/score", handler.GetScore)
	})

	// Threshold profile management
	router.Get("/thresholds", handler.GetThresholds)
	router.Post("/thresholds/reload", handler.ReloadThresholds)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
