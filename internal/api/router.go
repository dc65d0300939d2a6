// Package api provides HTTP router setup.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qfcreview/reviewdesk/internal/config"
	"github.com/qfcreview/reviewdesk/internal/dashboard"
	"github.com/qfcreview/reviewdesk/internal/ingest"
)

// NewRouter creates a new HTTP router with all routes configured.
// counter, when set, reports ingestion outcomes on the health endpoint.
func NewRouter(cfg *config.Config, svc *dashboard.Service, analyzer Analyzer, counter *ingest.Counter) http.Handler {
	r := chi.NewRouter()

	handler := NewHandler(svc, analyzer, counter, cfg.Upload.MaxUploadBytes())

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware(cfg.Server.CORSOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cfg.RateLimits.RequestsPerMinute))

			// Ingestion
			r.Post("/reviews", handler.SubmitReview)
			r.Post("/reviews/upload", handler.UploadReview)

			// Reviews
			r.Get("/reviews", handler.ListReviews)
			r.Get("/reviews/latest", handler.GetLatestReview)
			r.Get("/reviews/{id}", handler.GetReview)
			r.Get("/responses/{id}", handler.GetResponse)

			// Projections
			r.Get("/dashboard", handler.GetDashboard)
			r.Get("/regulations", handler.GetRegulations)
			r.Get("/metrics", handler.GetMetrics)
			r.Get("/audit", handler.GetAuditTrail)

			r.Delete("/data", handler.ClearData)
		})
	})

	return r
}
