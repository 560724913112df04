package supplier

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricFeatureRecomputeTotal             = "supplier_feature_recompute_total"
	MetricFeatureRecomputeErrors            = "supplier_feature_recompute_errors_total"
	MetricFeatureRecomputeDuration          = "supplier_feature_recompute_duration_seconds"
	MetricFeatureLastRecomputeTimestamp     = "supplier_feature_last_recompute_timestamp"
	MetricFeatureLastRecomputeSupplierCount = "supplier_feature_last_recompute_supplier_count"
	MetricFeatureDirtySuppliers             = "supplier_feature_dirty_suppliers"
)

// Metrics contains Prometheus metrics for feature row recomputation.
// All operations are thread-safe.
type Metrics struct {
	recomputeTotal             prometheus.Counter
	recomputeErrors            prometheus.Counter
	recomputeDuration          prometheus.Histogram
	lastRecomputeTimestamp     prometheus.Gauge
	lastRecomputeSupplierCount prometheus.Gauge
	dirtySuppliers             prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		recomputeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeatureRecomputeTotal,
			Help: "Total number of supplier feature recompute cycles",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeatureRecomputeErrors,
			Help: "Total number of supplier feature recompute errors",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeatureRecomputeDuration,
			Help:    "Histogram of supplier feature recompute duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
		lastRecomputeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricFeatureLastRecomputeTimestamp,
			Help: "Unix timestamp of the last supplier feature recompute",
		}),
		lastRecomputeSupplierCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricFeatureLastRecomputeSupplierCount,
			Help: "Number of suppliers processed in the last feature recompute",
		}),
		dirtySuppliers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricFeatureDirtySuppliers,
			Help: "Number of suppliers waiting for a feature recompute",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRecomputeTotal increments the recompute total counter.
func (m *Metrics) IncRecomputeTotal() {
	m.recomputeTotal.Inc()
}

// IncRecomputeErrors increments the recompute errors counter.
func (m *Metrics) IncRecomputeErrors() {
	m.recomputeErrors.Inc()
}

// ObserveRecomputeDuration records a recompute duration sample.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}

// SetLastRecomputeTimestamp sets the last recompute timestamp gauge.
func (m *Metrics) SetLastRecomputeTimestamp(timestamp float64) {
	m.lastRecomputeTimestamp.Set(timestamp)
}

// SetLastRecomputeSupplierCount sets the last recompute supplier count gauge.
func (m *Metrics) SetLastRecomputeSupplierCount(count float64) {
	m.lastRecomputeSupplierCount.Set(count)
}

// SetDirtySuppliers sets the dirty backlog gauge.
func (m *Metrics) SetDirtySuppliers(count float64) {
	m.dirtySuppliers.Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputeSupplierCount,
		m.dirtySuppliers,
	}
}
