// Package web exposes the loader over HTTP: POST /api/loads runs the same
// pipeline as the CLI on an uploaded spreadsheet and GET /healthz checks the
// database.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/despesas/internal/config"
	"github.com/JonMunkholm/despesas/internal/core"
	webmw "github.com/JonMunkholm/despesas/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Runner executes one load. *core.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job core.Job) (*core.Summary, error)
}

// Pinger checks database connectivity. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP trigger for pipeline runs.
type Server struct {
	runner  Runner
	db      Pinger
	cfg     *config.Config
	limiter *core.LoadLimiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires the router for runner and db using cfg.
func NewServer(runner Runner, db Pinger, cfg *config.Config) *Server {
	s := &Server{
		runner:  runner,
		db:      db,
		cfg:     cfg,
		limiter: core.NewLoadLimiter(cfg.Server.MaxConcurrentLoads, cfg.Server.MaxLoadWait),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(s.cfg.Server.APIKeys))
		r.Post("/loads", s.handleLoad)
		r.Get("/loads/status", s.handleLoadStatus)
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown waits for in-flight loads, then stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if active := s.limiter.Active(); active > 0 {
		slog.Info("waiting for loads to complete", "active", active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("loads did not complete in time", "error", err)
		}
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders sets headers suitable for a JSON-only API.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status. Encoding errors are only
// logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
