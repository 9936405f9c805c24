// Package metrics exposes the coordinator's Prometheus collectors.
//
// Grounded on platformbuilds-mirador-rca's internal/metrics/metrics.go:
// package-level collectors, a Register(reg) that tolerates
// already-registered collectors, and small observe helpers called from
// the business logic rather than from the HTTP layer directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmesh",
			Name:      "submissions_total",
			Help:      "Total number of submissions processed, partitioned by whether correlation was detected.",
		},
		[]string{"correlation_detected"},
	)

	advisoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmesh",
			Name:      "advisories_total",
			Help:      "Total number of advisories issued, partitioned by severity tier.",
		},
		[]string{"tier"},
	)

	fraudScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fraudmesh",
			Name:      "advisory_fraud_score",
			Help:      "Fraud score distribution of issued advisories.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	pruneEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fraudmesh",
			Name:      "prune_evictions_total",
			Help:      "Total number of observations evicted by the pruner.",
		},
	)
)

// Register attaches the coordinator's collectors to reg. Safe to call
// more than once against the same registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		submissionsTotal,
		advisoriesTotal,
		fraudScore,
		pruneEvictionsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// Collector implements pipeline.MetricsSink and pruner observability.
type Collector struct{}

// NewCollector returns a Collector. Collectors are stateless wrappers
// around the package-level prometheus vectors, so the zero value works.
func NewCollector() *Collector { return &Collector{} }

// ObserveSubmission records one processed submission.
func (Collector) ObserveSubmission(correlationDetected bool) {
	label := "false"
	if correlationDetected {
		label = "true"
	}
	submissionsTotal.WithLabelValues(label).Inc()
}

// ObserveAdvisory records one issued advisory and its fraud score.
func (Collector) ObserveAdvisory(tier models.Tier, score int) {
	advisoriesTotal.WithLabelValues(string(tier)).Inc()
	fraudScore.Observe(float64(score))
}

// ObservePrune records the number of observations a prune tick evicted.
func (Collector) ObservePrune(evictedEdges int) {
	pruneEvictionsTotal.Add(float64(evictedEdges))
}
