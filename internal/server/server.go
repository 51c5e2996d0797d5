// Package server provides the HTTP server and routing.
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

	"github.com/oakline/brickfolio/internal/config"
	"github.com/oakline/brickfolio/internal/database"
	"github.com/oakline/brickfolio/internal/ingestion"
	"github.com/oakline/brickfolio/internal/modules/analysis"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
	"github.com/oakline/brickfolio/internal/modules/properties"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Config      *config.Config
	PortfolioDB *database.DB
	CacheDB     *database.DB

	Ingestion   *ingestion.Service
	Analysis    *analysis.Service
	Portfolios  *portfolio.Repository
	Properties  *properties.PropertyRepository
	Proformas   *properties.ProformaRepository
	Market      *properties.MarketRepository
	Suggestions *properties.SuggestionRepository
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	handlers *Handlers

	portfolioDB *database.DB
	cacheDB     *database.DB
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		portfolioDB: cfg.PortfolioDB,
		cacheDB:     cfg.CacheDB,
		handlers: NewHandlers(
			cfg.Ingestion,
			cfg.Analysis,
			cfg.Portfolios,
			cfg.Properties,
			cfg.Proformas,
			cfg.Market,
			cfg.Suggestions,
			cfg.Log,
		),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/properties", func(r chi.Router) {
			r.Post("/", s.handlers.HandleIngestProperty)
			r.Route("/{propertyID}", func(r chi.Router) {
				r.Get("/", s.handlers.HandleGetProperty)
				r.Delete("/", s.handlers.HandleDeleteProperty)
				r.Post("/analyze", s.handlers.HandleAnalyzeProperty)
				r.Get("/proforma", s.handlers.HandleGetProforma)
				r.Get("/suggestions", s.handlers.HandleListSuggestions)
				r.Post("/market", s.handlers.HandleAppendMarketSnapshot)
				r.Get("/market", s.handlers.HandleGetMarketSnapshot)
			})
		})

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListPortfolios)
			r.Route("/{portfolioID}", func(r chi.Router) {
				r.Get("/summary", s.handlers.HandleGetSummary)
				r.Get("/properties", s.handlers.HandleListProperties)
				r.Post("/analyze", s.handlers.HandleAnalyzePortfolio)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, db := range []*database.DB{s.portfolioDB, s.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": db.Name(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the mux for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
