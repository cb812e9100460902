package metrics_collectors

import (
	"context"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/rs/zerolog"
)

// MetricsRegistry holds the host metric collectors attached to status messages.
type MetricsRegistry struct {
	collectors []MetricCollector
	config     models.HostMetricsConfig
}

// NewMetricsRegistry creates a registry that collects whatever config enables.
func NewMetricsRegistry(config models.HostMetricsConfig) *MetricsRegistry {
	return &MetricsRegistry{config: config}
}

// NewHostMetricsRegistry returns a registry with the built-in collectors.
func NewHostMetricsRegistry(config models.HostMetricsConfig, logger zerolog.Logger) *MetricsRegistry {
	registry := NewMetricsRegistry(config)
	registry.Register(&CPUMetricCollector{Logger: logger})
	registry.Register(&MemoryMetricCollector{Logger: logger})
	registry.Register(&GoroutineMetricCollector{Logger: logger})
	return registry
}

// Register adds a collector. Collectors run in registration order.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.collectors = append(r.collectors, collector)
}

// Collect runs every enabled collector. Failed collectors are omitted. It
// returns nil when nothing is enabled.
func (r *MetricsRegistry) Collect(ctx context.Context) map[string]*float64 {
	var values map[string]*float64
	for _, collector := range r.collectors {
		if !collector.IsEnabled(&r.config) {
			continue
		}
		if values == nil {
			values = make(map[string]*float64)
		}
		if value := collector.Collect(ctx); value != nil {
			values[collector.Name()] = value
		}
	}
	return values
}
