package operation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectkit_operation_invocations_total",
			Help: "Total operation invocations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	invocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectkit_operation_duration_seconds",
			Help:    "Duration of operation invocations, validation included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	validationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectkit_operation_validation_failures_total",
			Help: "Invocations rejected before the handler ran",
		},
		[]string{"operation"},
	)
)

// recordInvocation records metrics for one Invoke call
func recordInvocation(operation, outcome string, duration float64) {
	invocationsTotal.WithLabelValues(operation, outcome).Inc()
	invocationDuration.WithLabelValues(operation, outcome).Observe(duration)
	if outcome == outcomeValidation {
		validationFailures.WithLabelValues(operation).Inc()
	}
}
