package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Remote call outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	remoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "endpointstore_remote_calls_total",
			Help: "Total number of remote endpoints calls issued by the store",
		},
		[]string{"operation", "status"},
	)

	remoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "endpointstore_remote_call_duration_seconds",
			Help:    "Time from issuing a remote endpoints call to its completion",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordRemoteCall records one completed remote call.
func RecordRemoteCall(operation, status string, duration time.Duration) {
	operation = normalizeLabel(operation, "unknown")
	remoteCallsTotal.WithLabelValues(operation, normalizeLabel(status, "unknown")).Inc()
	remoteCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func normalizeLabel(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
