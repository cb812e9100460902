package metrics_collectors

import (
	"context"
	"runtime"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/rs/zerolog"
)

// GoroutineMetricCollector counts the process's goroutines.
type GoroutineMetricCollector struct {
	Logger zerolog.Logger
}

func (g *GoroutineMetricCollector) Name() string {
	return "goroutines"
}

func (g *GoroutineMetricCollector) Collect(_ context.Context) *float64 {
	n := float64(runtime.NumGoroutine())
	g.Logger.Debug().Float64("goroutines", n).Msg("Goroutine count collected")
	return &n
}

func (g *GoroutineMetricCollector) IsEnabled(config *models.HostMetricsConfig) bool {
	return config.MonitorGoroutines
}

func (g *GoroutineMetricCollector) Unit() string {
	return "count"
}
