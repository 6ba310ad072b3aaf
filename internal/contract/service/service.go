// Package service concludes contracts from matched offer and acceptance
// pairs and drives the audited parts of their lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"civitas/internal/contract/metrics"
	"civitas/internal/contract/models"
	"civitas/internal/contract/ports"
	entity "civitas/internal/entity/models"
	intent "civitas/internal/intent/models"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/requestcontext"
)

const component = "ContractService"

type Service struct {
	auditor ports.AuditPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock sets the clock concluded contracts are stamped with.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Service {
	svc := &Service{
		tracer: noop.NewTracerProvider().Tracer(component),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ConcludeOption tunes a single conclusion.
type ConcludeOption func(*concludeParams)

type concludeParams struct {
	terms []string
}

// WithTerms adds numbered clauses to the concluded contract.
func WithTerms(terms ...string) ConcludeOption {
	return func(p *concludeParams) {
		p.terms = append(p.terms, terms...)
	}
}

// Conclude forms a base contract from an offer and the acceptance of it.
// Both must be effective, unexpired and carry the same match code; every
// distinct declarant must have capacity. The contract is returned effective.
func (s *Service) Conclude(ctx context.Context, offer, acceptance *intent.Declaration, opts ...ConcludeOption) (*models.Contract, error) {
	return conclude(ctx, s, "Conclude", offer, acceptance, opts,
		func(parties []entity.Entity, decls []*intent.Declaration, copts []models.Option) (*models.Contract, error) {
			return models.New(parties, decls, copts...), nil
		})
}

// ConcludeSale forms a sale whose item, price and delivery terms are read
// from the offer's content.
func (s *Service) ConcludeSale(ctx context.Context, offer, acceptance *intent.Declaration, opts ...ConcludeOption) (*models.SaleContract, error) {
	return conclude(ctx, s, "ConcludeSale", offer, acceptance, opts,
		func(parties []entity.Entity, decls []*intent.Declaration, copts []models.Option) (*models.SaleContract, error) {
			return models.SaleFromContent(parties, decls, offer.Content(), copts...), nil
		})
}

// ConcludeAtypical forms a named contract the civil code has no type for.
func (s *Service) ConcludeAtypical(ctx context.Context, name string, offer, acceptance *intent.Declaration, opts ...ConcludeOption) (*models.AtypicalContract, error) {
	return conclude(ctx, s, "ConcludeAtypical", offer, acceptance, opts,
		func(parties []entity.Entity, decls []*intent.Declaration, copts []models.Option) (*models.AtypicalContract, error) {
			return models.NewAtypical(name, parties, decls, copts...)
		})
}

type builder[C models.Agreement] func(parties []entity.Entity, decls []*intent.Declaration, opts []models.Option) (C, error)

func conclude[C models.Agreement](ctx context.Context, s *Service, op string, offer, acceptance *intent.Declaration, opts []ConcludeOption, build builder[C]) (C, error) {
	ctx, _ = requestcontext.EnsureRequestID(ctx)
	ctx, span := s.tracer.Start(ctx, "contract."+op)
	defer span.End()
	start := time.Now()

	params := concludeParams{}
	for _, opt := range opts {
		opt(&params)
	}

	var zero C
	c, outcome, err := formContract(ctx, s, op, offer, acceptance, params, build)
	s.metrics.IncrementOutcome("conclude", outcome)
	s.metrics.ObserveConcludeLatency(time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		s.fail(ctx, span, "contract conclusion rejected", outcome, err)
		return zero, err
	}

	span.SetAttributes(attribute.String("contract_id", c.ID().String()))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "contract concluded",
			"contract_id", c.ID().String(),
			"offer_id", offer.ID().String(),
			"acceptance_id", acceptance.ID().String(),
			"parties", len(c.Parties()),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return c, nil
}

func formContract[C models.Agreement](ctx context.Context, s *Service, op string, offer, acceptance *intent.Declaration, params concludeParams, build builder[C]) (C, string, error) {
	var zero C
	if err := checkPair(offer, acceptance, op); err != nil {
		return zero, metrics.OutcomeUnmatched, err
	}

	parties := distinctParties(offer.Declarant(), acceptance.Declarant())
	if err := checkParties(ctx, parties); err != nil {
		var dErr *dErrors.Error
		if !errors.As(err, &dErr) {
			return zero, metrics.OutcomeUnqualified, dErrors.Wrap(err, dErrors.CodePartyUnqualified, "party check did not complete").
				In(component, op)
		}
		return zero, metrics.OutcomeUnqualified, err
	}

	c, err := build(parties, []*intent.Declaration{offer, acceptance}, []models.Option{
		models.WithClock(s.now),
		models.WithTerms(params.terms...),
	})
	if err != nil {
		return zero, metrics.OutcomeRejected, err
	}

	var auditErr error
	hook := func(_, to models.Status) error {
		auditErr = s.emit(ctx, audit.EventContractConcluded, c, string(to), "")
		return auditErr
	}
	if err := c.MakeEffective(hook); err != nil {
		if auditErr != nil {
			return zero, metrics.OutcomeAuditFailure,
				dErrors.Wrap(err, dErrors.CodeInternal, "contract audit failed; conclusion abandoned").
					In(component, op)
		}
		return zero, outcomeFor(err), err
	}
	return c, metrics.OutcomeConcluded, nil
}

// Terminate ends an effective or running contract and records it for every
// party. A failed audit write leaves the contract as it was.
func (s *Service) Terminate(ctx context.Context, c models.Agreement) error {
	return s.lifecycle(ctx, "Terminate", metrics.OutcomeTerminated, c, func(hook models.CommitHook) error {
		return c.Terminate(hook)
	}, audit.EventContractTerminated, "")
}

// Invalidate voids a contract for reason and records it for every party.
func (s *Service) Invalidate(ctx context.Context, c models.Agreement, reason string) error {
	return s.lifecycle(ctx, "Invalidate", metrics.OutcomeInvalidated, c, func(hook models.CommitHook) error {
		return c.Invalidate(reason, hook)
	}, audit.EventContractInvalidated, reason)
}

func (s *Service) lifecycle(ctx context.Context, op, success string, c models.Agreement, apply func(models.CommitHook) error, action audit.AuditEvent, reason string) error {
	ctx, span := s.tracer.Start(ctx, "contract."+op)
	defer span.End()

	if c == nil {
		err := dErrors.New(dErrors.CodeInvalidInput, "contract is required").In(component, op)
		s.fail(ctx, span, "contract "+opLabel(op)+" rejected", metrics.OutcomeRejected, err)
		return err
	}
	span.SetAttributes(attribute.String("contract_id", c.ID().String()))

	var auditErr error
	err := apply(func(_, to models.Status) error {
		auditErr = s.emit(ctx, action, c, string(to), reason)
		return auditErr
	})

	outcome := success
	switch {
	case err != nil && auditErr != nil:
		outcome = metrics.OutcomeAuditFailure
		err = dErrors.Wrap(err, dErrors.CodeInternal, "contract audit failed; transition abandoned").In(component, op)
	case err != nil:
		outcome = outcomeFor(err)
	}
	s.metrics.IncrementOutcome(opLabel(op), outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		s.fail(ctx, span, "contract "+opLabel(op)+" rejected", outcome, err)
		return err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "contract "+success,
			"contract_id", c.ID().String(),
			"status", string(c.Status()),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil
}

func opLabel(op string) string {
	switch op {
	case "Terminate":
		return "terminate"
	case "Invalidate":
		return "invalidate"
	}
	return "conclude"
}

func checkPair(offer, acceptance *intent.Declaration, op string) error {
	if offer == nil || acceptance == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "offer and acceptance are required").In(component, op)
	}
	if !offer.Kind().IsProposal() || acceptance.Kind() != intent.KindAcceptance {
		return dErrors.Newf(dErrors.CodeMatchFailure, "cannot conclude from %s and %s", offer.Kind(), acceptance.Kind()).
			In(component, op)
	}
	if !offer.CanFormContractWith(acceptance) {
		return dErrors.New(dErrors.CodeMatchFailure, "offer and acceptance do not form a contract").
			In(component, op)
	}
	return nil
}

// distinctParties keeps the first occurrence of each entity id.
func distinctParties(candidates ...entity.Entity) []entity.Entity {
	parties := make([]entity.Entity, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		if p == nil {
			continue
		}
		key := p.ID().String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		parties = append(parties, p)
	}
	return parties
}

// checkParties runs the capacity check for every party concurrently and
// returns the first failure.
func checkParties(ctx context.Context, parties []entity.Entity) error {
	if len(parties) == 0 {
		return dErrors.New(dErrors.CodePartyUnqualified, "contract has no parties").In(component, "checkParties")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range parties {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return models.CheckParty(p)
		})
	}
	return g.Wait()
}

func outcomeFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeMatchFailure:
		return metrics.OutcomeUnmatched
	case dErrors.CodePartyUnqualified, dErrors.CodeCapacityLacking:
		return metrics.OutcomeUnqualified
	}
	return metrics.OutcomeRejected
}

// emit writes one compliance record per party so each party's history shows
// the contract.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, c models.Agreement, decision, reason string) error {
	if s.auditor == nil {
		return nil
	}
	for _, p := range c.Parties() {
		err := s.auditor.Emit(ctx, audit.ComplianceEvent{
			EntityID:  p.ID(),
			Subject:   c.ID().String(),
			Action:    string(action),
			Decision:  decision,
			Reason:    reason,
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   requestcontext.ActorID(ctx),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, msg, outcome string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg,
			"outcome", outcome,
			"code", string(dErrors.CodeOf(err)),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
