package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeConflict = "conflict"
)

// Storage Prometheus metrics.
var (
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexstore",
			Name:      "batches_total",
			Help:      "Total number of storage batches by mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: "batch" / "view"
	)

	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indexstore",
			Name:      "batch_duration_seconds",
			Help:      "Storage batch duration in seconds, including commit",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"mode"},
	)

	MirrorPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexstore",
			Name:      "mirror_publish_total",
			Help:      "Index stats published to the mirror by outcome",
		},
		[]string{"outcome"},
	)
)

var storageMetricsRegistered bool

// RegisterStorageMetrics registers storage metrics. Must be called once from main.
func RegisterStorageMetrics() {
	if storageMetricsRegistered {
		return
	}
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(MirrorPublishTotal)
	storageMetricsRegistered = true
}

// ObserveBatch records one finished batch.
func ObserveBatch(mode, outcome string, d time.Duration) {
	BatchesTotal.WithLabelValues(mode, outcome).Inc()
	BatchDuration.WithLabelValues(mode).Observe(d.Seconds())
}
