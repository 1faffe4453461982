// Package api provides HTTP API server components.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klaxon/klaxon/config"
	"github.com/klaxon/klaxon/pkg/api/handlers"
	"github.com/klaxon/klaxon/pkg/api/middleware"
	"github.com/klaxon/klaxon/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Operations handles operation submission, listing, and cancellation
	Operations *handlers.OperationsHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Events streams operation lifecycle events over websocket
	Events *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder

	// CancelLimiter throttles cancel requests per client, optional
	CancelLimiter *middleware.RateLimiter
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	// Register routes
	RegisterRoutes(r, handlers, cfg.Server.HTTP.ReadTimeout)

	return r
}

// RegisterRoutes registers all API routes. The timeout applies to the
// JSON API only; the websocket stream is long-lived.
func RegisterRoutes(r chi.Router, h *Handlers, timeout time.Duration) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		if h.Operations != nil {
			r.Route("/operations", func(r chi.Router) {
				r.Post("/", h.Operations.SubmitOperation)
				r.Get("/", h.Operations.ListOperations)
				r.Get("/{id}", h.Operations.GetOperation)

				if h.CancelLimiter != nil {
					r.With(h.CancelLimiter.Middleware()).Post("/{id}/cancel", h.Operations.CancelOperation)
				} else {
					r.Post("/{id}/cancel", h.Operations.CancelOperation)
				}
			})
		}
	})

	// Health check routes (not versioned)
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	// Event stream
	if h.Events != nil {
		r.Get("/ws/events", h.Events.ServeHTTP)
	}
}
