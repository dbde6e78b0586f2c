package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/observability"
)

type RouterOptions struct {
	Limiter            Limiter
	RateLimitPerMinute int
	Idempotency        *idempotency.Idempotency
}

func SetupRouter(h *Handlers, logger observability.Logger, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
		// providers deliver from a few shared IPs and must always get a 200
		r.Post("/payments/callback", h.PaymentCallback)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(opts.Limiter, opts.RateLimitPerMinute, logger))

			r.Get("/venues", h.ListVenues)
			r.Get("/venues/{venueID}/courts", h.ListCourts)
			r.Get("/venues/{venueID}/availability", h.VenueAvailability)
			r.Get("/courts/{courtID}/availability", h.GetFreeSlots)
			r.Get("/reservations/{id}", h.GetReservation)

			r.Group(func(r chi.Router) {
				r.Use(IdempotencyMiddleware(opts.Idempotency, logger))
				r.Post("/bookings", h.BookSlot)
				r.Post("/venues/{venueID}/bookings", h.BookAnyCourt)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/reservations", h.ListReservations)
				r.Patch("/reservations/{id}", h.UpdateReservation)
				r.Delete("/reservations/{id}", h.DeleteReservation)
				r.Get("/reservations/{id}/history", h.ReservationHistory)
				r.Get("/stats", h.Stats)
			})
		})
	})

	return r
}
