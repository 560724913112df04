package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSuppliersScoredTotal = "ranking_suppliers_scored_total"
	MetricRankScore            = "ranking_rank_score"
	MetricFeatureSourceTotal   = "ranking_feature_source_total"
)

// Metrics contains Prometheus metrics for supplier scoring.
// All operations are thread-safe.
type Metrics struct {
	scoredTotal   *prometheus.CounterVec
	rankScore     prometheus.Histogram
	featureSource *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		scoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSuppliersScoredTotal,
				Help: "Total number of suppliers scored by endpoint",
			},
			[]string{"endpoint"},
		),
		rankScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankScore,
			Help:    "Distribution of computed supplier rank scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120},
		}),
		featureSource: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeatureSourceTotal,
				Help: "Feature rows used for scoring by source (precomputed or history)",
			},
			[]string{"source"},
		),
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

// ObserveRanked records one scored supplier.
func (m *Metrics) ObserveRanked(endpoint string, r Ranked) {
	m.scoredTotal.WithLabelValues(endpoint).Inc()
	m.rankScore.Observe(r.Rank.RankScore)
}

// IncFeatureSource counts where a feature row came from.
func (m *Metrics) IncFeatureSource(source string) {
	m.featureSource.WithLabelValues(source).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.scoredTotal,
		m.rankScore,
		m.featureSource,
	}
}
