// Package ops provides a best-effort audit tracker for operational events.
//
// Track never fails the caller: events may be sampled away, dropped while the
// circuit breaker is open, or lost when the store rejects them.
//
// Use for: declaration_submitted, declaration_delivered, declaration_matched
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "civitas/pkg/platform/audit"
	"civitas/pkg/requestcontext"
)

type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) { t.sampler = s }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) { t.breaker = cb }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker that keeps every event and opens its breaker after
// five consecutive store failures, unless overridden.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1),
		breaker: NewCircuitBreaker(5, time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records an ops event if sampling and the breaker allow it.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if t == nil || event.Action == "" {
		return
	}
	if !t.sampler.Keep(audit.AuditEvent(event.Action)) {
		t.metrics.Record(event.Action, ResultSampledOut)
		return
	}
	if !t.breaker.Allow() {
		t.metrics.Record(event.Action, ResultBreakerDropped)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := t.store.Append(ctx, event.ToEvent()); err != nil {
		open := t.breaker.Failure()
		t.metrics.Record(event.Action, ResultWriteFailed)
		t.metrics.SetBreakerOpen(open)
		if t.logger != nil {
			t.logger.WarnContext(ctx, "ops audit dropped",
				"action", event.Action,
				"breaker_open", open,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		return
	}
	t.breaker.Success()
	t.metrics.SetBreakerOpen(false)
	t.metrics.Record(event.Action, ResultStored)
}
