package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingMetrics(t *testing.T) {
	m := NewTrainingMetrics()
	m.ObserveSamples("Diagnosis", "raw", 700)
	m.ObserveSamples("Diagnosis", "balanced", 826)
	m.ObserveSearch("Diagnosis", 0.93)
	m.ObserveDiagnostics("Diagnosis", map[string]float64{"accuracy": 0.92, "f1_macro": 0.9})
	m.ObserveDuration("Diagnosis", 1500*time.Millisecond)

	assert.Equal(t, 826.0, testutil.ToFloat64(m.samples.WithLabelValues("Diagnosis", "balanced")))
	assert.Equal(t, 0.9, testutil.ToFloat64(m.cvScore.WithLabelValues("Diagnosis", "f1_macro")))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.duration.WithLabelValues("Diagnosis")))

	path := filepath.Join(t.TempDir(), "training.prom")
	require.NoError(t, m.Finish("run-1", time.Unix(1700000000, 0), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `appendicitis_training_cv_score{metric="accuracy",target="Diagnosis"} 0.92`)
	assert.Contains(t, text, `appendicitis_training_last_run_timestamp_seconds{run_id="run-1"} 1.7e+09`)
}
