// Package metrics exposes Prometheus instrumentation for the ingestion
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResourcesTotal tracks ingested resources per type and outcome.
	ResourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fornax_resources_total",
			Help: "Total number of resources processed by the ingestion engine",
		},
		[]string{"resource_type", "outcome"}, // "created", "updated", "skipped"
	)

	// BatchesTotal tracks completed batches per terminal status.
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fornax_batches_total",
			Help: "Total number of ingestion batches",
		},
		[]string{"status"}, // "committed", "rolled_back", "summary_failed"
	)

	// BatchDuration tracks end-to-end batch duration.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fornax_batch_duration_seconds",
			Help:    "Duration of ingestion batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordResources records per-type ingestion outcomes.
func RecordResources(resourceType string, created, updated, skipped int) {
	ResourcesTotal.WithLabelValues(resourceType, "created").Add(float64(created))
	ResourcesTotal.WithLabelValues(resourceType, "updated").Add(float64(updated))
	ResourcesTotal.WithLabelValues(resourceType, "skipped").Add(float64(skipped))
}

// RecordBatch records a finished batch.
func RecordBatch(status string, duration time.Duration) {
	BatchesTotal.WithLabelValues(status).Inc()
	BatchDuration.Observe(duration.Seconds())
}
