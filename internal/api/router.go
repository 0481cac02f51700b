package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shotaf-bot/shotaf/internal/database"
	mw "github.com/shotaf-bot/shotaf/internal/middleware"
	inats "github.com/shotaf-bot/shotaf/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// WhatsApp webhook
	Webhook http.HandlerFunc

	// Auth handlers
	RequestCode http.HandlerFunc
	Verify      http.HandlerFunc
	Refresh     http.HandlerFunc
	Logout      http.HandlerFunc

	// Task handlers
	ListTasks  http.HandlerFunc
	GetTask    http.HandlerFunc
	DeleteTask http.HandlerFunc

	// Note handlers
	ListNotes  http.HandlerFunc
	GetNote    http.HandlerFunc
	DeleteNote http.HandlerFunc

	// Memory handler
	GetMemory http.HandlerFunc

	// Channel settings
	UpdateChannel http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	WebhookRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Green API webhook — rate limited, no auth (the provider cannot
	// log in; unparseable payloads are dropped inside the handler).
	r.Group(func(r chi.Router) {
		if cfg.WebhookRateLimiter != nil {
			r.Use(cfg.WebhookRateLimiter)
		}
		r.Post("/webhook", h.Webhook)
	})

	// API v1 (dashboard)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/request-code", h.RequestCode)
			r.Post("/verify", h.Verify)
			r.Post("/refresh", h.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListTasks)
				r.Get("/{id}", h.GetTask)
				r.Delete("/{id}", h.DeleteTask)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", h.ListNotes)
				r.Get("/{id}", h.GetNote)
				r.Delete("/{id}", h.DeleteNote)
			})

			r.Get("/memory", h.GetMemory)
			r.Put("/settings/channel", h.UpdateChannel)
		})
	})

	return r
}
