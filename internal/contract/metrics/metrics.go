package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for contract operations.
const (
	OutcomeConcluded    = "concluded"
	OutcomeTerminated   = "terminated"
	OutcomeInvalidated  = "invalidated"
	OutcomeUnmatched    = "unmatched"
	OutcomeUnqualified  = "unqualified"
	OutcomeRejected     = "rejected"
	OutcomeAuditFailure = "audit_failure"
)

// Metrics provides observability for contract conclusion and lifecycle.
type Metrics struct {
	// Operation outcomes by operation ("conclude", "terminate", "invalidate") and outcome
	Outcomes *prometheus.CounterVec

	// End-to-end conclusion latency, party checks included
	ConcludeLatency prometheus.Histogram
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_operations_total",
			Help:      "Contract operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		ConcludeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "contract_conclude_duration_seconds",
			Help:      "Time taken to conclude a contract from an offer and an acceptance",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
	}
}

func (m *Metrics) IncrementOutcome(operation, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) ObserveConcludeLatency(d time.Duration) {
	if m != nil {
		m.ConcludeLatency.Observe(d.Seconds())
	}
}
