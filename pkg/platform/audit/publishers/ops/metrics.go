package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// What happened to a tracked event.
const (
	ResultStored         = "stored"
	ResultSampledOut     = "sampled_out"
	ResultBreakerDropped = "breaker_dropped"
	ResultWriteFailed    = "write_failed"
)

// Metrics is nil-safe.
type Metrics struct {
	Events      *prometheus.CounterVec
	BreakerOpen prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_ops_events_total",
			Help:      "Operational audit events by action and what became of them",
		}, []string{"action", "result"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_ops_breaker_open",
			Help:      "1 while the ops audit store breaker refuses writes",
		}),
	}
}

func (m *Metrics) Record(action, result string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(action, result).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.Set(v)
}
