package metrics_collectors

import (
	"context"

	"github.com/benmeehan/collar-sync/internal/models"
)

// MetricCollector defines the interface for collecting one host metric.
type MetricCollector interface {
	Name() string                                    // Key in the status message (e.g., "cpu")
	Collect(ctx context.Context) *float64            // Current value, nil when unavailable
	IsEnabled(config *models.HostMetricsConfig) bool // Check if the metric is enabled in the config
	Unit() string                                    // Unit of the metric (e.g., "percentage", "count")
}
