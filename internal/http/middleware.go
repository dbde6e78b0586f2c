package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelhttp "go.opentelemetry.io/otel/propagation"
)

const (
	idempotencyHeader = "Idempotency-Key"
	minIdempotencyKey = 16
	maxIdempotencyKey = 128
)

type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error)
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// LoggerMiddleware attaches a request-scoped logger and logs each completed
// request with its status and duration.
func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithField("request_id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(observability.WithLogger(r.Context(), entry)))
			entry.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("request completed")
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), otelhttp.HeaderCarrier(r.Header))
		tracer := otel.Tracer("courtbook/http")
		ctx, span := tracer.Start(ctx, r.Method)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		// path parameters would make span names unbounded
		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", ww.Status()),
		)
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}

// MetricsMiddleware counts requests by route pattern so path parameters do
// not explode label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
	})
}

// RateLimitMiddleware applies a per-client window. A limiter failure lets the
// request through.
func RateLimitMiddleware(rl Limiter, perMinute int, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := rl.Allow(r.Context(), "ip:"+clientIP(r), perMinute, time.Minute)
			if err != nil {
				observability.FromContext(r.Context(), logger).WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				observability.RateLimitExceeded.Inc()
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. Requests without the header pass through. Server errors
// release the key so the client may retry.
func IdempotencyMiddleware(idemp *idempotency.Idempotency, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if idemp == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) < minIdempotencyKey || len(key) > maxIdempotencyKey {
				writeJSON(w, http.StatusBadRequest, errorResponse{
					Error:  "invalid request",
					Fields: map[string]string{idempotencyHeader: "must be between 16 and 128 characters"},
				})
				return
			}
			key = r.URL.Path + ":" + key
			log := observability.FromContext(r.Context(), logger)

			stored, err := idemp.Begin(r.Context(), key)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
				return
			case err != nil:
				writeError(w, r, logger, err)
				return
			case stored != nil:
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Result)
				return
			}

			// the request may have been cancelled after the handler ran
			ctx := context.WithoutCancel(r.Context())
			defer func() {
				if rec := recover(); rec != nil {
					if err := idemp.Abandon(ctx, key); err != nil {
						log.WithError(err).Warn("failed to release idempotency key")
					}
					panic(rec)
				}
			}()

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := idemp.Abandon(ctx, key); err != nil {
					log.WithError(err).Warn("failed to release idempotency key")
				}
				return
			}
			resp := idempotency.Response{Status: status, ContentType: ww.Header().Get("Content-Type"), Result: buf.Bytes()}
			if err := idemp.Complete(ctx, key, resp); err != nil {
				log.WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}
