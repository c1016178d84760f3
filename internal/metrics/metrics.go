package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_transitions_total",
			Help: "Total number of negotiation state transitions",
		},
		[]string{"operation", "outcome"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outcomes of notification deliveries",
		},
		[]string{"result"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Current number of active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		TransitionsTotal,
		NotificationsTotal,
		WSConnections,
	)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// ObserveTransition records the outcome of a negotiation operation.
func ObserveTransition(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TransitionsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveNotifications records aggregate delivery counts.
func ObserveNotifications(sent, failed int) {
	if sent > 0 {
		NotificationsTotal.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		NotificationsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}
