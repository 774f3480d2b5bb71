// Package api provides the HTTP API for premium status, activation and
// license administration.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/lycebot/premium/pkg/observability"
)

// CorrelationHeader carries the caller's correlation id.
const CorrelationHeader = "X-Correlation-ID"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	server *http.Server
	logger *slog.Logger
	deps   Deps
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AdminToken guards /api/v1/admin. Empty disables the admin routes.
	AdminToken string

	// ActivationRatePerMinute and ActivationBurst throttle activation per requester.
	ActivationRatePerMinute int
	ActivationBurst         int
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                    "0.0.0.0:8080",
		ReadTimeout:             15 * time.Second,
		WriteTimeout:            15 * time.Second,
		IdleTimeout:             60 * time.Second,
		ActivationRatePerMinute: 5,
		ActivationBurst:         3,
	}
}

// Deps are the services behind the API. Licensing is required.
type Deps struct {
	Licensing Licensing
	Purchases Purchases
	Health    *observability.HealthRegistry
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: deps.Logger,
		deps:   deps,
	}
	s.registerRoutes(cfg)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes(cfg ServerConfig) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlation)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	licensing := &LicensingHandler{
		handler:   handler{logger: s.logger},
		licensing: s.deps.Licensing,
		limiter:   newRequesterLimiter(cfg.ActivationRatePerMinute, cfg.ActivationBurst),
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/tiers", licensing.Tiers)
		r.Get("/tenants/{tenantID}/status", licensing.Status)
		r.Get("/tenants/{tenantID}/features/{feature}", licensing.Feature)
		r.Post("/tenants/{tenantID}/activate", licensing.Activate)

		if cfg.AdminToken == "" {
			s.logger.Warn("API_ADMIN_TOKEN not set, admin routes disabled")
			return
		}

		admin := &AdminHandler{
			handler:   handler{logger: s.logger},
			licensing: s.deps.Licensing,
			purchases: s.deps.Purchases,
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth(cfg.AdminToken))

			r.Post("/licenses", admin.Issue)
			r.Get("/licenses", admin.List)
			r.Get("/licenses/{key}", admin.Info)
			r.Delete("/licenses/{key}", admin.RevokeKey)
			r.Delete("/tenants/{tenantID}/premium", admin.Revoke)
			r.Post("/sweep", admin.Sweep)
			if s.deps.Purchases != nil {
				r.Post("/purchases", admin.Purchase)
				r.Post("/cancellations", admin.CancelSubscription)
			}
		})
	})
}

// handleHealth reports the aggregated component health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		render.JSON(w, r, map[string]string{
			"status": string(observability.HealthStatusHealthy),
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	health := s.deps.Health.GetOverallHealth(r.Context())
	if health.Status == observability.HealthStatusUnhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, health)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting premium API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down premium API server")
	return s.server.Shutdown(ctx)
}

func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithCorrelationID(r.Context(), r.Header.Get(CorrelationHeader))
		ctx = observability.WithRequestID(ctx, middleware.GetReqID(ctx))
		w.Header().Set(CorrelationHeader, observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
