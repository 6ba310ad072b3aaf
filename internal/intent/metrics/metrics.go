package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the declaration book.
type Metrics struct {
	// Lifecycle transitions by declaration kind and resulting status
	Transitions *prometheus.CounterVec

	// Rejected operations by operation and error code
	Rejections *prometheus.CounterVec

	// Pairwise contract-formation checks by result ("matched", "unmatched")
	MatchChecks *prometheus.CounterVec

	// Declarations held by the book
	Stored prometheus.Gauge
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "declaration_transitions_total",
			Help:      "Declaration lifecycle transitions by kind and resulting status",
		}, []string{"kind", "status"}),

		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "declaration_rejections_total",
			Help:      "Rejected declaration operations by operation and error code",
		}, []string{"operation", "code"}),

		MatchChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "declaration_match_checks_total",
			Help:      "Contract-formation checks between declaration pairs by result",
		}, []string{"result"}),

		Stored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "declarations_stored",
			Help:      "Declarations currently held by the book",
		}),
	}
}

func (m *Metrics) IncrementTransition(kind, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) IncrementRejection(operation, code string) {
	if m != nil {
		m.Rejections.WithLabelValues(operation, code).Inc()
	}
}

func (m *Metrics) IncrementMatchCheck(matched bool) {
	if m == nil {
		return
	}
	result := "unmatched"
	if matched {
		result = "matched"
	}
	m.MatchChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncStored() {
	if m != nil {
		m.Stored.Inc()
	}
}
