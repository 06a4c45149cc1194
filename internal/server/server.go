// Package server provides the HTTP query API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/search"
)

// StatsProvider reports store statistics. Only the flat-file store provides them.
type StatsProvider interface {
	Stats() models.StoreStats
}

// Server is the HTTP server for the query API.
type Server struct {
	service   *search.Service
	stats     StatsProvider
	diskPaths []string
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStats enables store statistics on /stats.
func WithStats(p StatsProvider) Option {
	return func(s *Server) { s.stats = p }
}

// WithDiskPaths reports the combined size of paths on /stats.
func WithDiskPaths(paths ...string) Option {
	return func(s *Server) { s.diskPaths = paths }
}

// NewServer creates a server with the given dependencies.
func NewServer(service *search.Service, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		config:  cfg,
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/search", s.handleSearch)
	r.Post("/explain_match", s.handleExplain)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("database_type", s.service.DatabaseType()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
