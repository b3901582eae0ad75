// Package server provides the HTTP surfaces of the extractor: the OAuth2
// redirect target used by "authorize --listen" and the read-only status API
// served next to the scheduler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config holds server configuration
type Config struct {
	Addr string
	Log  zerolog.Logger

	// Callback, when set, is mounted at CallbackPath.
	Callback     *CallbackHandler
	CallbackPath string

	// Status, when set, serves /api/runs, /api/summary and /api/receivables.
	Status *StatusHandlers

	// Health reports database health on /health. Optional.
	Health HealthChecker
}

// HealthChecker reports whether the storage is usable.
type HealthChecker interface {
	QuickCheck(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// The status API is read-only, so any origin may poll it
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	if s.cfg.Callback != nil {
		path := s.cfg.CallbackPath
		if path == "" {
			path = "/"
		}
		s.router.Method(http.MethodGet, path, s.cfg.Callback)
	}

	if s.cfg.Status != nil {
		s.router.Route("/api", func(r chi.Router) {
			r.Get("/runs", s.cfg.Status.HandleRuns)
			r.Get("/summary", s.cfg.Status.HandleSummary)
		})
	}
}

// Start serves until Shutdown. It never returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check failed")
			writeJSON(w, s.log, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	writeJSON(w, s.log, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "conta-azul",
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, log zerolog.Logger, status int, message string) {
	writeJSON(w, log, status, map[string]string{"error": message})
}
