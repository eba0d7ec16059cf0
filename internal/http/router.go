package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veloztours/booking-engine/internal/observability"
	"github.com/veloztours/booking-engine/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	// Reservation-creating POSTs require an Idempotency-Key for safe client
	// retries; everything else is idempotent by construction.
	r.Group(func(r chi.Router) {
		r.Use(IdempotencyKeyRequired)
		r.Post("/v1/reservations", h.CreateReservation)
		r.Post("/v1/waitlist", h.JoinWaitlist)
	})

	r.Patch("/v1/reservations/{id}", h.UpdateReservation)
	r.Post("/v1/waitlist/{id}/claim", h.ClaimWaitlist)
	r.Post("/v1/waitlist/{id}/resubscribe", h.Resubscribe)
	r.Post("/v1/payments/webhook", h.PaymentWebhook)
	r.Get("/v1/payments/status", h.PaymentStatus)
	r.Post("/v1/admin/cleanup", h.AdminCleanup)
	r.Post("/v1/admin/notify", h.AdminNotify)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
