package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/adamsih300u/bastion-sub010/internal/api/handlers"
	"github.com/adamsih300u/bastion-sub010/internal/api/middleware"
	"github.com/adamsih300u/bastion-sub010/internal/config"
)

// HealthReporter exposes the checkpoint layer's health for the health
// endpoint.
type HealthReporter interface {
	Healthy(ctx context.Context) bool
	UsingFallback() bool
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, health HealthReporter) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Identity)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler(health))
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/agents", h.ListAgents)

		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Post("/turns", h.ProcessTurn)
			r.Post("/resume", h.ResumeTurn)
			r.Get("/status", h.GetStatus)
		})
	})

	return r
}

func healthHandler(health HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if health != nil && !health.Healthy(r.Context()) {
			status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":         status,
			"service":        "bastion",
			"using_fallback": health != nil && health.UsingFallback(),
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "bastion",
		})
	}
}
