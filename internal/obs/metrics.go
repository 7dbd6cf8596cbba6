package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplier_lifecycle_transitions_total",
			Help: "Supplier profile state transitions by kind and outcome.",
		},
		[]string{"transition", "outcome"},
	)

	notificationsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Notification messages successfully handed to the mail transport.",
	})

	notificationsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notification messages dropped, by reason (queue_full, delivery_failed).",
		},
		[]string{"reason"},
	)

	documentFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_fetches_total",
			Help: "Token-gated document retrievals by access mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		lifecycleTransitions,
		notificationsDelivered,
		notificationsDropped,
		documentFetches,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTransition records a lifecycle transition attempt.
func ObserveTransition(transition, outcome string) {
	lifecycleTransitions.WithLabelValues(transition, outcome).Inc()
}

// NotificationDelivered counts a successful delivery.
func NotificationDelivered() { notificationsDelivered.Inc() }

// NotificationDropped counts a dropped message.
func NotificationDropped(reason string) {
	notificationsDropped.WithLabelValues(reason).Inc()
}

// ObserveDocumentFetch records a document retrieval attempt.
func ObserveDocumentFetch(mode, outcome string) {
	documentFetches.WithLabelValues(mode, outcome).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
