package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gateway metrics
var (
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_connections_active",
		Help: "Currently open WebSocket connections.",
	})

	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_failures_total",
			Help: "Rejected connection handshakes by reason.",
		},
		[]string{"reason"},
	)

	EventsRelayedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_events_relayed_total",
		Help: "Leak events accepted and fanned out to rooms.",
	})

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_dropped_total",
			Help: "Inbound events dropped before relay, by reason.",
		},
		[]string{"reason"},
	)

	NotifyDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_notify_deliveries_total",
			Help: "Notification dispatch attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// HTTP metrics shared by the handshake and probe endpoints.
var (
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
)

// Init registers all gateway metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		ConnectionsActive,
		AuthFailuresTotal,
		EventsRelayedTotal,
		EventsDroppedTotal,
		NotifyDeliveriesTotal,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an http.Handler with request count and latency metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// statusWriter records the response code for metrics and logging.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so instrumented WebSocket upgrades keep working.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
