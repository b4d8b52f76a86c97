// Package observability collects prometheus metrics and HTTP request
// logging for the gateway.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatgate",
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatgate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatgate",
			Name:      "sessions_active",
			Help:      "Sessions currently registered.",
		},
	)

	reconnectDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatgate",
			Name:      "reconnect_decisions_total",
			Help:      "Disconnect classifications, by decision and cause.",
		},
		[]string{"decision", "cause"},
	)

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatgate",
			Name:      "messages_sent_total",
			Help:      "Outbound messages accepted by the provider, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		activeSessions,
		reconnectDecisions,
		messagesSent,
	)
}

// RecordHTTPRequest records one processed HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetActiveSessions updates the registered session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordReconnectDecision counts one disconnect classification.
func RecordReconnectDecision(decision, cause string) {
	reconnectDecisions.WithLabelValues(decision, cause).Inc()
}

// RecordMessageSent counts one accepted outbound message.
func RecordMessageSent(kind string) {
	messagesSent.WithLabelValues(kind).Inc()
}
