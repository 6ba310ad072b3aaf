package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for guardianship operations.
const (
	OutcomeAssigned     = "assigned"
	OutcomeReplaced     = "replaced"
	OutcomeReleased     = "released"
	OutcomeIneligible   = "ineligible"
	OutcomeMalformed    = "malformed"
	OutcomeLockFailure  = "lock_failure"
	OutcomeAuditFailure = "audit_failure"
	OutcomeInternal     = "internal"
)

// Metrics provides observability for the guardianship module.
type Metrics struct {
	// Operation outcomes by operation ("assign", "release") and outcome
	Outcomes *prometheus.CounterVec

	// Time spent waiting for both write gates
	LockWait prometheus.Histogram

	// Guardianships currently attached through this manager
	Active prometheus.Gauge
}

// New registers guardianship metrics with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardianship_operations_total",
			Help:      "Total guardianship operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guardianship_lock_wait_seconds",
			Help:      "Time spent acquiring ward and guardian write gates",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		Active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guardianship_active",
			Help:      "Guardianships attached and not yet released",
		}),
	}
}

// IncrementOutcome records an operation outcome.
func (m *Metrics) IncrementOutcome(operation, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, outcome).Inc()
	}
}

// ObserveLockWait records how long acquiring both gates took.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m != nil {
		m.LockWait.Observe(d.Seconds())
	}
}

func (m *Metrics) IncActive() {
	if m != nil {
		m.Active.Inc()
	}
}

func (m *Metrics) DecActive() {
	if m != nil {
		m.Active.Dec()
	}
}
