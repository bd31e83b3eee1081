package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokenRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectkit_oauth_token_requests_total",
			Help: "Token endpoint calls by provider, grant type and outcome",
		},
		[]string{"provider", "grant_type", "outcome"},
	)

	tokenRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectkit_oauth_token_request_duration_seconds",
			Help:    "Duration of token endpoint calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "grant_type"},
	)
)

func recordTokenRequest(provider, grantType, outcome string, seconds float64) {
	tokenRequests.WithLabelValues(provider, grantType, outcome).Inc()
	tokenRequestDuration.WithLabelValues(provider, grantType).Observe(seconds)
}
