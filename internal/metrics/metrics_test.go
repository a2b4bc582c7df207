package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsAndDumps(t *testing.T) {
	m := New("ronin-testnet")

	m.StepFinished("succeeded")
	m.StepFinished("skipped")
	m.StepFinished("skipped")
	m.Deployment("deployed")
	m.Verification("mismatch")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.steps.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployments.WithLabelValues("deployed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("mismatch")))

	path := filepath.Join(t.TempDir(), "deployer.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ronin_deployer_steps_total{network="ronin-testnet",status="skipped"} 2`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.StepFinished("succeeded")
	m.Deployment("deployed")
	m.Verification("match")
	assert.NoError(t, m.WriteTextfile("/nonexistent/path"))
}
