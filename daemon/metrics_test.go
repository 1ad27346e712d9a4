package daemon

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySessionsGaugeTracksRegisteredCount(t *testing.T) {
	reg := NewRegistry(DefaultLivenessThresholds(), nil)
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	reg.SetSessionsGauge(metrics.SessionsGauge)

	reg.Register(NewSessionRecord("sess-1", "widgets", "/tmp", "/tmp/state.json", "Planning", 1, "Planning", 1234, time.Now()))
	reg.Register(NewSessionRecord("sess-2", "gizmos", "/tmp", "/tmp/state.json", "Planning", 1, "Planning", 1235, time.Now()))

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "planning_agent_daemon_sessions_gauge" {
			found = true
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(2), mf.Metric[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "expected planning_agent_daemon_sessions_gauge to be registered")
}
