package metrics_collectors

import (
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics exports cycle outcomes to Prometheus. It is registered as a
// cycle observer on the sync service.
type SyncMetrics struct {
	cycles        *prometheus.CounterVec
	observations  *prometheus.CounterVec
	pushes        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
}

// NewSyncMetrics registers the sync metrics with reg.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)
	return &SyncMetrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collarsync",
			Name:      "cycles_total",
			Help:      "Sync cycles by final status.",
		}, []string{"status"}),
		observations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collarsync",
			Name:      "observations_total",
			Help:      "Reconciled observations by outcome.",
		}, []string{"outcome"}),
		pushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collarsync",
			Name:      "pushes_total",
			Help:      "Collar API updates by outcome.",
		}, []string{"outcome"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "collarsync",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a sync cycle, including the inter-phase delay.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		lastCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "collarsync",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time at which the last cycle finished.",
		}),
	}
}

// OnCycle records one finished cycle.
func (m *SyncMetrics) OnCycle(report models.CycleReport, _ models.CycleStats) {
	m.cycles.WithLabelValues(report.Status).Inc()
	m.cycleDuration.Observe(report.Duration().Seconds())
	m.lastCycle.Set(float64(report.FinishedAt.Unix()))

	if r := report.Reconcile; r != nil {
		m.observations.WithLabelValues("created").Add(float64(r.Created))
		m.observations.WithLabelValues("updated").Add(float64(r.Updated))
		m.observations.WithLabelValues("error").Add(float64(r.ErrorCount))
	}
	if p := report.Push; p != nil {
		m.pushes.WithLabelValues("sent").Add(float64(p.Sent))
		m.pushes.WithLabelValues("error").Add(float64(p.ErrorCount))
	}
}
