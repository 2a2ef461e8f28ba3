// Package telemetry records training run metrics in a private Prometheus
// registry and writes them in the node_exporter textfile format.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uemura/appendicitis/pkg/errors"
)

// TrainingMetrics holds the gauges of one training run.
type TrainingMetrics struct {
	registry *prometheus.Registry

	cvScore   *prometheus.GaugeVec
	bestScore *prometheus.GaugeVec
	samples   *prometheus.GaugeVec
	duration  *prometheus.GaugeVec
	lastRun   *prometheus.GaugeVec
}

// NewTrainingMetrics registers the gauges on a fresh registry.
func NewTrainingMetrics() *TrainingMetrics {
	registry := prometheus.NewRegistry()

	cvScore := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appendicitis",
			Subsystem: "training",
			Name:      "cv_score",
			Help:      "Mean cross-validation score of the refitted model by metric.",
		},
		[]string{"target", "metric"},
	)
	bestScore := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appendicitis",
			Subsystem: "training",
			Name:      "search_best_accuracy",
			Help:      "Best mean accuracy found by the grid search.",
		},
		[]string{"target"},
	)
	samples := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appendicitis",
			Subsystem: "training",
			Name:      "samples",
			Help:      "Rows used for training by stage (raw or balanced).",
		},
		[]string{"target", "stage"},
	)
	duration := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appendicitis",
			Subsystem: "training",
			Name:      "duration_seconds",
			Help:      "Wall time spent training one target.",
		},
		[]string{"target"},
	)
	lastRun := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appendicitis",
			Subsystem: "training",
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the last training run.",
		},
		[]string{"run_id"},
	)

	registry.MustRegister(cvScore, bestScore, samples, duration, lastRun)

	return &TrainingMetrics{
		registry:  registry,
		cvScore:   cvScore,
		bestScore: bestScore,
		samples:   samples,
		duration:  duration,
		lastRun:   lastRun,
	}
}

// Registry exposes the underlying registry.
func (m *TrainingMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSamples records the row count of a target at a stage.
func (m *TrainingMetrics) ObserveSamples(target, stage string, n int) {
	m.samples.WithLabelValues(target, stage).Set(float64(n))
}

// ObserveSearch records the grid search winner's score.
func (m *TrainingMetrics) ObserveSearch(target string, best float64) {
	m.bestScore.WithLabelValues(target).Set(best)
}

// ObserveDiagnostics records the mean CV score per metric.
func (m *TrainingMetrics) ObserveDiagnostics(target string, scores map[string]float64) {
	for metric, v := range scores {
		m.cvScore.WithLabelValues(target, metric).Set(v)
	}
}

// ObserveDuration records how long a target took to train.
func (m *TrainingMetrics) ObserveDuration(target string, d time.Duration) {
	m.duration.WithLabelValues(target).Set(d.Seconds())
}

// Finish stamps the run and writes the textfile to path.
func (m *TrainingMetrics) Finish(runID string, at time.Time, path string) error {
	m.lastRun.WithLabelValues(runID).Set(float64(at.Unix()))
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write telemetry %s", path)
	}
	return nil
}
