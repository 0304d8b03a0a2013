package obs

import (
	"net/http"
	"strconv"
	"strings"
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

	authzDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Requests refused by the permission layer.",
		},
		[]string{"resource", "action"},
	)

	auditRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_recorded_total",
		Help: "Audit entries persisted by the background writer.",
	})

	auditDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_dropped_total",
		Help: "Audit entries dropped because the queue was full or closed.",
	})

	auditFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Audit entries the store refused to persist.",
	})

	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests refused with 429.",
	})
)

// Init registers the service metrics in the default registry. Call once
// from main.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		authzDenialsTotal,
		auditRecordedTotal,
		auditDroppedTotal,
		auditFailedTotal,
		rateLimitedTotal,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncAuthzDenial counts a permission refusal.
func IncAuthzDenial(resource, action string) {
	authzDenialsTotal.WithLabelValues(resource, action).Inc()
}

// IncAuditRecorded counts a persisted audit entry.
func IncAuditRecorded() { auditRecordedTotal.Inc() }

// IncAuditDropped counts an audit entry lost before persistence.
func IncAuditDropped() { auditDroppedTotal.Inc() }

// IncAuditFailed counts an audit entry the store rejected.
func IncAuditFailed() { auditFailedTotal.Inc() }

// IncRateLimited counts a request refused by the limiter.
func IncRateLimited() { rateLimitedTotal.Inc() }

// Instrument wraps a handler with RPS, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so the path label stays
// low-cardinality: /api/clientes/01ABC -> /api/clientes/:id.
func CanonicalPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) < 3 {
		return path
	}
	// Fixed sub-routes keep their own label.
	switch parts[1] {
	case "auth", "dashboard":
		return path
	}
	if parts[2] == "registrar" {
		return path
	}
	canonical := []string{"", "api", parts[1], ":id"}
	return strings.Join(canonical, "/")
}

// statusWriter remembers the response code for the metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
