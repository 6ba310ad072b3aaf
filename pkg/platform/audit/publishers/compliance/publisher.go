// Package compliance writes legally significant audit events. A write either
// lands in the store or the caller gets an error and must abandon the change
// it was about to make.
//
// Use for: guardianship_*, declaration_effective/revoked/withdrawn, contract_*
package compliance

import (
	"context"
	"log/slog"
	"time"

	dErrors "civitas/pkg/domain-errors"
	audit "civitas/pkg/platform/audit"
	"civitas/pkg/requestcontext"
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithClock stamps events that arrive without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists event. Correlation fields left empty are taken
// from ctx. Operational actions are refused; they belong to the ops tracker.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := validate(event); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}

	start := time.Now()
	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit write failed",
				"action", event.Action,
				"entity_id", event.EntityID,
				"subject", event.Subject,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "compliance audit not persisted").
			In("compliance", "Emit")
	}
	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEventsEmitted(event.Action)
	return nil
}

func validate(event audit.ComplianceEvent) error {
	switch {
	case event.EntityID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "compliance event requires an entity").
			In("compliance", "Emit")
	case event.Action == "":
		return dErrors.New(dErrors.CodeInvalidInput, "compliance event requires an action").
			In("compliance", "Emit")
	case audit.AuditEvent(event.Action).Category() != audit.CategoryCompliance:
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a compliance action", event.Action).
			In("compliance", "Emit")
	}
	return nil
}
