package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/metrics"
)

// NewRouter mounts the admin API, health and metrics endpoints. limiter may
// be nil.
func NewRouter(h *Handler, limiter Limiter, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(requestLogger(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter, logger, IPKeyFunc))

		// A manual run can take as long as the candidate list; no request timeout
		r.Post("/reminders/run", h.RunReminders)

		r.With(middleware.Timeout(30*time.Second)).
			Get("/subscriptions/{id}/notifications", h.ListNotificationLogs)
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
