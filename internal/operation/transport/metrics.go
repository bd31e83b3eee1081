package transport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectkit_http_requests_total",
			Help: "Outbound vendor API requests by method and status class",
		},
		[]string{"method", "status_class"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectkit_http_request_duration_seconds",
			Help:    "Duration of outbound vendor API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// statusClass returns "2xx", "4xx" and so on, or "error" when no response
// was received.
func statusClass(status int) string {
	if status < 100 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

func recordRequest(method string, status int, duration float64) {
	requestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	requestDuration.WithLabelValues(method).Observe(duration)
}
