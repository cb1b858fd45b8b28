// Package http is the REST surface of the deadline agent.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deadline-agent/internal/interfaces/http/handlers"
	"github.com/turtacn/deadline-agent/internal/interfaces/http/middleware"
)

// RouterConfig carries everything NewRouter mounts. Nil handlers leave their
// routes out.
type RouterConfig struct {
	ExtractionHandler *handlers.ExtractionHandler
	CalendarHandler   *handlers.CalendarHandler
	HealthHandler     *handlers.HealthHandler

	// RateLimiter enables per-client limiting on /api/v1.
	RateLimiter     middleware.RateLimiter
	RateLimitConfig middleware.RateLimitConfig
	LoggingConfig   middleware.LoggingConfig

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	// HTTPMetrics, when set, records request counts and latencies.
	HTTPMetrics middleware.HTTPMetrics
	MetricsPath string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(logger.Named("http"), cfg.LoggingConfig))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}
	r.Use(chimw.Recoverer)

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimitConfig))
		}
		registerExtractionRoutes(api, cfg.ExtractionHandler)
		registerCalendarRoutes(api, cfg.CalendarHandler)
	})

	return r
}

func registerExtractionRoutes(r chi.Router, h *handlers.ExtractionHandler) {
	if h == nil {
		return
	}
	r.Post("/extract", h.Extract)
	r.Post("/extract/batch", h.ExtractBatch)
	r.Post("/documents", h.UploadDocument)
	r.Get("/rules", h.Rules)
	r.Post("/metrics/business", h.BusinessMetrics)
}

func registerCalendarRoutes(r chi.Router, h *handlers.CalendarHandler) {
	if h == nil {
		return
	}
	r.Route("/calendar", func(cr chi.Router) {
		cr.Get("/holidays", h.Holidays)
		cr.Get("/business-days", h.BusinessDays)
	})
}
