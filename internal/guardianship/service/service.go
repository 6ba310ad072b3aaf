// Package service establishes and releases guardian-ward relations between
// two natural persons.
//
// Both records are written under their entity write gates. The gates are
// always taken in EntityID order, whatever order the caller passes ward and
// guardian in, so two operations over the same pair cannot deadlock.
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

	"civitas/internal/entity/models"
	"civitas/internal/guardianship/metrics"
	"civitas/internal/guardianship/ports"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/requestcontext"
)

const component = "Guardianship"

// DefaultLockTimeout bounds gate acquisition when the caller's context has
// no deadline of its own.
const DefaultLockTimeout = 5 * time.Second

type Service struct {
	wards       ports.WardIndex
	auditor     ports.AuditPublisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	lockTimeout time.Duration
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

// WithLockTimeout sets the acquisition bound; zero or less disables it.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.lockTimeout = d
	}
}

func New(wards ports.WardIndex, opts ...Option) (*Service, error) {
	if wards == nil {
		return nil, errors.New("ward index is required")
	}
	svc := &Service{
		wards:       wards,
		tracer:      noop.NewTracerProvider().Tracer(component),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AssignOption tunes a single assignment.
type AssignOption func(*assignParams)

type assignParams struct {
	validUntil *time.Time
}

// WithValidUntil ends the relation at t. Without it the relation is open-ended.
func WithValidUntil(t time.Time) AssignOption {
	return func(p *assignParams) {
		p.validUntil = &t
	}
}

// Assign makes guardian the guardian of ward with the given scope. An
// existing relation on the ward is replaced.
//
// The guardian must have full capacity, normal mental status and be at
// least 18. When the check fails neither record is touched.
func (s *Service) Assign(ctx context.Context, ward, guardian models.Person, scope models.GuardianshipScope, opts ...AssignOption) (models.Guardianship, error) {
	ctx, span := s.tracer.Start(ctx, "guardianship.Assign", trace.WithAttributes(partyAttrs(ward, guardian)...))
	defer span.End()

	params := assignParams{}
	for _, opt := range opts {
		opt(&params)
	}

	g, outcome, err := s.assign(ctx, ward, guardian, scope, params)
	s.metrics.IncrementOutcome("assign", outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		s.fail(ctx, span, "guardianship assignment rejected", outcome, err)
		return models.Guardianship{}, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "guardianship assigned",
			"ward_id", g.Ward.String(),
			"guardian_id", g.Guardian.String(),
			"outcome", outcome,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return g, nil
}

func (s *Service) assign(ctx context.Context, ward, guardian models.Person, scope models.GuardianshipScope, params assignParams) (models.Guardianship, string, error) {
	if err := checkPair(ward, guardian, "Assign"); err != nil {
		return models.Guardianship{}, metrics.OutcomeMalformed, err
	}

	ctx, cancel := s.withLockTimeout(ctx)
	defer cancel()

	release, err := s.lockPair(ctx, ward, guardian, "Assign")
	if err != nil {
		return models.Guardianship{}, metrics.OutcomeLockFailure, err
	}
	g, former, outcome, err := s.assignLocked(ctx, ward, guardian, scope, params)
	release()
	if err != nil {
		return models.Guardianship{}, outcome, err
	}

	if !former.IsNil() && former != guardian.ID() {
		if err := s.settleFormerGuardian(ctx, former); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "former guardian marker not settled",
				"guardian_id", former.String(),
				"code", string(dErrors.CodeOf(err)),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return g, outcome, nil
}

// assignLocked runs with both gates held. former is the guardian the ward
// named before, or the nil id.
func (s *Service) assignLocked(ctx context.Context, ward, guardian models.Person, scope models.GuardianshipScope, params assignParams) (models.Guardianship, id.EntityID, string, error) {
	var none id.EntityID
	if !guardian.CanBeGuardian() {
		return models.Guardianship{}, none, metrics.OutcomeIneligible,
			dErrors.Newf(dErrors.CodeCapacityLacking,
				"guardian must be an adult of full capacity and normal mental status (age %d, capacity %s, mental status %s)",
				guardian.Age(), guardian.NaturalCapacity(), guardian.MentalStatus()).
				In(component, "Assign").
				WithEntities(guardian.ID().String())
	}

	now := ward.Now()
	if params.validUntil != nil && !params.validUntil.After(now) {
		return models.Guardianship{}, none, metrics.OutcomeMalformed,
			dErrors.New(dErrors.CodeRelationMalformed, "validity window must end after the relation starts").
				In(component, "Assign").
				WithEntities(ward.ID().String())
	}

	g := models.Guardianship{
		Guardian:   guardian.ID(),
		Ward:       ward.ID(),
		Scope:      scope.Clone(),
		CreatedAt:  now,
		ValidUntil: params.validUntil,
	}

	previous, replaced := ward.Guardianship()
	wasGuardian := guardian.IsGuardian()
	outcome := metrics.OutcomeAssigned
	if replaced {
		outcome = metrics.OutcomeReplaced
	}

	ward.AttachGuardianship(g)
	guardian.MarkAsGuardian(true)

	if err := s.emit(ctx, audit.EventGuardianshipAssigned, ward.ID(), guardian.ID(), outcome); err != nil {
		if replaced {
			ward.AttachGuardianship(previous)
		} else {
			ward.DetachGuardianship()
		}
		guardian.MarkAsGuardian(wasGuardian)
		return models.Guardianship{}, none, metrics.OutcomeAuditFailure,
			dErrors.Wrap(err, dErrors.CodeInternal, "guardianship audit failed; assignment rolled back").
				In(component, "Assign").
				WithEntities(ward.ID().String(), guardian.ID().String())
	}

	if !replaced {
		s.metrics.IncActive()
		return g, none, outcome, nil
	}
	return g, previous.Guardian, outcome, nil
}

// settleFormerGuardian clears the marker of a guardian displaced by a
// replacement once no ward names them. Only that guardian's gate is held.
func (s *Service) settleFormerGuardian(ctx context.Context, formerID id.EntityID) error {
	former, err := s.wards.Person(ctx, formerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "former guardian not registered").
			In(component, "Assign").
			WithEntities(formerID.String())
	}
	release, err := former.Acquire(ctx)
	if err != nil {
		return lockError(err, "Assign", formerID)
	}
	defer release()

	remaining, err := s.wards.WardsOf(ctx, formerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up remaining wards").
			In(component, "Assign")
	}
	if len(remaining) == 0 {
		former.MarkAsGuardian(false)
	}
	return nil
}

// Release ends the relation between ward and guardian. The guardian's marker
// is cleared once no other ward names it.
func (s *Service) Release(ctx context.Context, ward, guardian models.Person) error {
	ctx, span := s.tracer.Start(ctx, "guardianship.Release", trace.WithAttributes(partyAttrs(ward, guardian)...))
	defer span.End()

	outcome, err := s.release(ctx, ward, guardian)
	s.metrics.IncrementOutcome("release", outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		s.fail(ctx, span, "guardianship release rejected", outcome, err)
		return err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "guardianship released",
			"ward_id", ward.ID().String(),
			"guardian_id", guardian.ID().String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil
}

func (s *Service) release(ctx context.Context, ward, guardian models.Person) (string, error) {
	if err := checkPair(ward, guardian, "Release"); err != nil {
		return metrics.OutcomeMalformed, err
	}

	ctx, cancel := s.withLockTimeout(ctx)
	defer cancel()

	unlock, err := s.lockPair(ctx, ward, guardian, "Release")
	if err != nil {
		return metrics.OutcomeLockFailure, err
	}
	defer unlock()

	current, ok := ward.Guardianship()
	if !ok || current.Guardian != guardian.ID() {
		return metrics.OutcomeMalformed,
			dErrors.New(dErrors.CodeRelationMalformed, "ward is not under this guardian").
				In(component, "Release").
				WithEntities(ward.ID().String(), guardian.ID().String())
	}

	wasGuardian := guardian.IsGuardian()
	ward.DetachGuardianship()

	remaining, err := s.wards.WardsOf(ctx, guardian.ID())
	if err != nil {
		ward.AttachGuardianship(current)
		return metrics.OutcomeInternal,
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up remaining wards").
				In(component, "Release")
	}
	if len(remaining) == 0 {
		guardian.MarkAsGuardian(false)
	}

	if err := s.emit(ctx, audit.EventGuardianshipReleased, ward.ID(), guardian.ID(), metrics.OutcomeReleased); err != nil {
		ward.AttachGuardianship(current)
		guardian.MarkAsGuardian(wasGuardian)
		return metrics.OutcomeAuditFailure,
			dErrors.Wrap(err, dErrors.CodeInternal, "guardianship audit failed; release rolled back").
				In(component, "Release").
				WithEntities(ward.ID().String(), guardian.ID().String())
	}

	s.metrics.DecActive()
	return metrics.OutcomeReleased, nil
}

// lockPair takes both write gates in EntityID order. On failure nothing is
// left held.
func (s *Service) lockPair(ctx context.Context, ward, guardian models.Person, op string) (func(), error) {
	first, second := ordered(ward, guardian)

	start := time.Now()
	releaseFirst, err := first.Acquire(ctx)
	if err != nil {
		return nil, lockError(err, op, first.ID())
	}
	releaseSecond, err := second.Acquire(ctx)
	if err != nil {
		releaseFirst()
		return nil, lockError(err, op, second.ID())
	}
	s.metrics.ObserveLockWait(time.Since(start))

	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}

// ordered returns the pair sorted by EntityID.
func ordered(a, b models.Person) (models.Person, models.Person) {
	if a.ID().Compare(b.ID()) <= 0 {
		return a, b
	}
	return b, a
}

func lockError(err error, op string, entityID id.EntityID) error {
	return dErrors.Wrap(err, dErrors.CodeLockFailure, "could not lock both parties").
		In(component, op).
		WithEntities(entityID.String())
}

func (s *Service) withLockTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.lockTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.lockTimeout)
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, ward, guardian id.EntityID, decision string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.ComplianceEvent{
		EntityID:  ward,
		Subject:   guardian.String(),
		Action:    string(action),
		Decision:  decision,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.ActorID(ctx),
	})
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

func checkPair(ward, guardian models.Person, op string) error {
	if models.IsNil(ward) || models.IsNil(guardian) {
		return dErrors.New(dErrors.CodeRelationMalformed, "ward and guardian are required").In(component, op)
	}
	if ward.ID() == guardian.ID() {
		return dErrors.New(dErrors.CodeRelationMalformed, "a person cannot be their own guardian").
			In(component, op).
			WithEntities(ward.ID().String())
	}
	return nil
}

func partyAttrs(ward, guardian models.Person) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if !models.IsNil(ward) {
		attrs = append(attrs, attribute.String("ward_id", ward.ID().String()))
	}
	if !models.IsNil(guardian) {
		attrs = append(attrs, attribute.String("guardian_id", guardian.ID().String()))
	}
	return attrs
}
