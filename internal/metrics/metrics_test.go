package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := New(reg)

	collector.BatchesTotal.WithLabelValues("jira", "ok").Inc()
	collector.DocumentsTotal.WithLabelValues("jira").Add(3)
	collector.UpsertFailures.Inc()
	collector.BatchDuration.WithLabelValues("jira").Observe(0.5)
	collector.UpsertDuration.Observe(0.1)
	collector.SearchDuration.Observe(0.2)
	collector.SearchScores.Observe(0.9)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Equal(t, float64(1), counterValue(t, collector.UpsertFailures))
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) }, "registering the same collector set twice against one registry must fail")
}
