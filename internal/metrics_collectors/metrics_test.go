package metrics_collectors_test

import (
	"context"
	"testing"
	"time"

	"github.com/benmeehan/collar-sync/internal/constants"
	metrics_collectors "github.com/benmeehan/collar-sync/internal/metrics_collectors"
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCollector struct {
	name  string
	value *float64
}

func (f fixedCollector) Name() string {
	return f.name
}

func (f fixedCollector) Collect(context.Context) *float64 {
	return f.value
}

func (f fixedCollector) Unit() string {
	return "count"
}

func (f fixedCollector) IsEnabled(config *models.HostMetricsConfig) bool {
	return config.MonitorGoroutines
}

func TestMetricsRegistry_Collect(t *testing.T) {
	value := 3.0
	registry := metrics_collectors.NewMetricsRegistry(models.HostMetricsConfig{MonitorGoroutines: true})
	registry.Register(fixedCollector{name: "fixed", value: &value})
	registry.Register(fixedCollector{name: "broken"})

	values := registry.Collect(context.Background())
	require.Contains(t, values, "fixed")
	assert.Equal(t, 3.0, *values["fixed"])
	assert.NotContains(t, values, "broken")
}

func TestMetricsRegistry_NothingEnabled(t *testing.T) {
	registry := metrics_collectors.NewHostMetricsRegistry(models.HostMetricsConfig{}, zerolog.Nop())
	assert.Nil(t, registry.Collect(context.Background()))
}

func TestGoroutineMetricCollector(t *testing.T) {
	collector := &metrics_collectors.GoroutineMetricCollector{Logger: zerolog.Nop()}
	value := collector.Collect(context.Background())
	require.NotNil(t, value)
	assert.Greater(t, *value, 0.0)
}

func TestSyncMetrics_OnCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := metrics_collectors.NewSyncMetrics(reg)

	finished := time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)
	metrics.OnCycle(models.CycleReport{
		Cycle:      1,
		StartedAt:  finished.Add(-3 * time.Second),
		FinishedAt: finished,
		Status:     constants.CycleStatusPartial,
		Push:       &models.PushSummary{TotalDevices: 3, Sent: 2, ErrorCount: 1},
	}, models.CycleStats{Cycles: 1, Partial: 1})

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	count, err := testutil.GatherAndCount(reg, "collarsync_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(reg, "collarsync_pushes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "collarsync_observations_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}
