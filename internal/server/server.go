// Package server provides the HTTP server and routing for the training service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/database"
	"github.com/aristath/groverq/internal/events"
	"github.com/aristath/groverq/internal/metrics"
	"github.com/aristath/groverq/internal/reliability"
	"github.com/aristath/groverq/internal/runs"
)

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	DevMode  bool
	Runs     *runs.Service
	RunsDB   *database.DB
	Events   *events.Manager
	Metrics  *metrics.Collector
	Archiver *reliability.RunArchiver // optional
	Defaults runs.Request             // base request for POST /api/runs
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	events         *events.Manager
	metrics        *metrics.Collector
	runHandlers    *RunHandlers
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		events:         cfg.Events,
		metrics:        cfg.Metrics,
		runHandlers:    NewRunHandlers(cfg.Runs, cfg.Archiver, cfg.Defaults, cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.Runs, cfg.RunsDB, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived event streams are kept out of the timeout and compression group.
		if s.events != nil {
			bus := s.events.Bus()
			r.Get("/events/stream", NewEventsStreamHandler(bus, s.log).ServeHTTP)
			r.Get("/events/ws", NewEventsWSHandler(bus, s.log).ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !devMode {
				r.Use(middleware.Compress(5))
			}

			r.Route("/runs", func(r chi.Router) {
				r.Post("/", s.runHandlers.HandleCreateRun)
				r.Get("/", s.runHandlers.HandleListRuns)
				r.Get("/{id}", s.runHandlers.HandleGetRun)
				r.Get("/{id}/episodes", s.runHandlers.HandleGetEpisodes)
				r.Get("/{id}/qtable", s.runHandlers.HandleGetQTable)
			})

			r.Get("/archives", s.runHandlers.HandleListArchives)
			r.Get("/quantum/max-iterations", s.runHandlers.HandleMaxIterations)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database", s.systemHandlers.HandleDatabaseStats)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
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
