package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"CDPShield/internal/alert"
	"CDPShield/internal/analysis"
	"CDPShield/internal/assistant"
	"CDPShield/internal/positions"
	"CDPShield/internal/recorder"
	"CDPShield/internal/testnet"
)

// Config holds server dependencies.
type Config struct {
	Addr      string
	Log       zerolog.Logger
	Analysis  *analysis.Service
	Positions *positions.Store
	Monitor   *alert.Monitor
	Assistant *assistant.Assistant
	Network   *testnet.Network
	Recorder  recorder.Recorder
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// UserID is used when a request names no user.
	UserID string
}

// Server is the HTTP API.
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
	log    zerolog.Logger
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/portfolio/analysis", s.handlePortfolioAnalysis)

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", s.handleListPositions)
			r.Put("/", s.handleReplacePositions)
			r.Post("/", s.handleAddPosition)
			r.Get("/{id}", s.handleGetPosition)
			r.Patch("/{id}", s.handlePatchPosition)
			r.Delete("/{id}", s.handleDeletePosition)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Delete("/", s.handleClearAlerts)
			r.Get("/status", s.handleAlertStatus)
			r.Post("/force-check", s.handleForceCheck)
			r.Post("/simulate", s.handleSimulate)
			r.Put("/language", s.handleSetLanguage)
			r.Post("/{id}/dismiss", s.handleDismiss)
		})

		r.Post("/assistant", s.handleAssistant)

		r.Get("/oracle/prices", s.handleOraclePrices)
		r.Get("/oracle/prices/{token}", s.handleOraclePrice)
		r.Post("/faucet/{symbol}", s.handleFaucet)
		r.Get("/tokens/{symbol}/balances/{address}", s.handleBalance)

		r.Get("/history/analyses", s.handleAnalysisHistory)
		r.Get("/history/alerts", s.handleAlertHistory)
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
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
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
