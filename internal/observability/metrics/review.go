// Package metrics provides custom Prometheus metrics for application components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ReviewMetrics contains all Prometheus metrics for the review staging pipeline.
type ReviewMetrics struct {
	ImagesStaged      prometheus.Counter
	DetectionFailures prometheus.Counter
	DetectionDuration prometheus.Histogram
	BatchesStaged     prometheus.Counter
	BatchesCommitted  prometheus.Counter
	ImagesCommitted   prometheus.Counter
}

// NewReviewMetrics creates and registers the review pipeline metrics.
func NewReviewMetrics(registry *prometheus.Registry) (*ReviewMetrics, error) {
	m := &ReviewMetrics{
		ImagesStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_images_staged_total",
			Help: "Total number of images successfully staged for review.",
		}),
		DetectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_detection_failures_total",
			Help: "Total number of per-image detection service failures.",
		}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "review_detection_duration_seconds",
			Help:    "Duration of detection service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		BatchesStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_batches_staged_total",
			Help: "Total number of review batches created.",
		}),
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_batches_committed_total",
			Help: "Total number of review batches committed to a project.",
		}),
		ImagesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_images_committed_total",
			Help: "Total number of staged images committed into inspections.",
		}),
	}

	collectors := []prometheus.Collector{
		m.ImagesStaged, m.DetectionFailures, m.DetectionDuration,
		m.BatchesStaged, m.BatchesCommitted, m.ImagesCommitted,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register review metrics: %w", err)
		}
	}
	return m, nil
}
