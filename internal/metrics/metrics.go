package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subtrack_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	reminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_reminder_runs_total",
			Help: "Reminder runs by result",
		},
		[]string{"result"},
	)

	reminderRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subtrack_reminder_run_duration_seconds",
			Help:    "Wall time of a full reminder run",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	renewalsAdvanced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtrack_renewals_advanced_total",
			Help: "Subscriptions whose renewal date was moved forward",
		},
	)

	remindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_reminders_dispatched_total",
			Help: "Reminder send attempts by channel and logged status",
		},
		[]string{"channel", "status"},
	)

	remindersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_reminders_skipped_total",
			Help: "Reminder candidates not dispatched, by reason",
		},
		[]string{"reason"},
	)

	decryptFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtrack_decrypt_failures_total",
			Help: "Account names shown as a placeholder because decryption failed",
		},
	)

	dispatchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_dispatch_events_total",
			Help: "reminder.dispatched events published to SQS by result",
		},
		[]string{"result"},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtrack_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
	)

	circuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subtrack_circuit_breaker_state",
			Help: "Channel circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReminderRun records the outcome and duration of a reminder run
func RecordReminderRun(result string, duration time.Duration) {
	reminderRuns.WithLabelValues(result).Inc()
	reminderRunDuration.Observe(duration.Seconds())
}

// RecordRenewalAdvanced counts one subscription moved to its next renewal date
func RecordRenewalAdvanced() {
	renewalsAdvanced.Inc()
}

// RecordReminderDispatched records a send attempt and the status it was logged with
func RecordReminderDispatched(channel, status string) {
	remindersDispatched.WithLabelValues(channel, status).Inc()
}

// RecordReminderSkipped records a candidate that was not dispatched
func RecordReminderSkipped(reason string) {
	remindersSkipped.WithLabelValues(reason).Inc()
}

// RecordDecryptFailure records a placeholder substitution
func RecordDecryptFailure() {
	decryptFailures.Inc()
}

// RecordDispatchEvent records the result of publishing a dispatch event
func RecordDispatchEvent(result string) {
	dispatchEvents.WithLabelValues(result).Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

// SetCircuitState exports the numeric state of a named circuit breaker
func SetCircuitState(name string, state int) {
	circuitState.WithLabelValues(name).Set(float64(state))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern labels requests by chi route ("/v1/subscriptions/{id}/notifications")
// rather than raw path, keeping subscription ids out of label values
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, routePattern(r), wrapped.status, time.Since(start))
	})
}
