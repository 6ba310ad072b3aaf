// Package service keeps the declaration book: the set of declarations
// submitted between entities, their lifecycle, and the search for
// declarations that can form a contract together.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	entity "civitas/internal/entity/models"
	"civitas/internal/intent/metrics"
	"civitas/internal/intent/models"
	"civitas/internal/intent/ports"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/platform/sentinel"
	"civitas/pkg/requestcontext"
)

const component = "DeclarationBook"

// Book holds declarations by id. It is safe for concurrent use.
type Book struct {
	mu           sync.RWMutex
	declarations map[id.DeclarationID]*models.Declaration

	digest        models.DigestAlgorithm
	traceMatching bool
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	auditor       ports.AuditPublisher
	ops           ports.OpsTracker
}

type Option func(*Book)

// WithDigest sets the algorithm for every declaration the book builds.
func WithDigest(alg models.DigestAlgorithm) Option {
	return func(b *Book) {
		b.digest = alg
	}
}

// WithTraceMatching logs each validity and match-code comparison at DEBUG.
func WithTraceMatching(enabled bool) Option {
	return func(b *Book) {
		b.traceMatching = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Book) {
		if now != nil {
			b.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Book) {
		b.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(b *Book) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(b *Book) {
		b.auditor = publisher
	}
}

func WithOpsTracker(tracker ports.OpsTracker) Option {
	return func(b *Book) {
		b.ops = tracker
	}
}

func New(opts ...Option) *Book {
	b := &Book{
		declarations: make(map[id.DeclarationID]*models.Declaration),
		digest:       models.DigestSHA256,
		now:          time.Now,
		tracer:       noop.NewTracerProvider().Tracer(component),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit builds a declaration and files it. A live declaration of the same
// kind that Matches the new one makes it a duplicate.
func (b *Book) Submit(ctx context.Context, kind models.Kind, declarant, recipient entity.Entity, content models.Content, opts ...models.Option) (*models.Declaration, error) {
	opts = append([]models.Option{models.WithClock(b.now)}, opts...)
	opts = append(opts, models.WithDigest(b.digest))

	d, err := models.NewDeclaration(kind, declarant, recipient, content, opts...)
	if err != nil {
		b.reject(ctx, "Submit", err)
		return nil, err
	}

	b.mu.Lock()
	if dup := b.duplicateOf(d); dup != nil {
		b.mu.Unlock()
		err := dErrors.Newf(dErrors.CodeSequenceWrong, "declaration duplicates live declaration %s", dup.ID()).
			In(component, "Submit").
			WithEntities(declarant.ID().String())
		b.reject(ctx, "Submit", err)
		return nil, err
	}
	if _, taken := b.declarations[d.ID()]; taken {
		b.mu.Unlock()
		err := dErrors.Wrap(sentinel.ErrConflict, dErrors.CodeConflict, "declaration id already filed").
			In(component, "Submit")
		b.reject(ctx, "Submit", err)
		return nil, err
	}
	b.declarations[d.ID()] = d
	b.mu.Unlock()

	b.metrics.IncStored()
	b.metrics.IncrementTransition(string(d.Kind()), string(models.StatusCreated))
	b.track(ctx, audit.EventDeclarationSubmitted, d)
	if b.logger != nil {
		b.logger.InfoContext(ctx, "declaration submitted",
			"declaration_id", d.ID().String(),
			"kind", string(d.Kind()),
			"declarant_id", d.Declarant().ID().String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return d, nil
}

// duplicateOf must be called with b.mu held.
func (b *Book) duplicateOf(d *models.Declaration) *models.Declaration {
	for _, existing := range b.declarations {
		if existing.Kind() != d.Kind() || existing.Status().IsTerminal() {
			continue
		}
		if existing.Matches(d) {
			return existing
		}
	}
	return nil
}

// Get returns a filed declaration.
func (b *Book) Get(_ context.Context, declID id.DeclarationID) (*models.Declaration, error) {
	b.mu.RLock()
	d, ok := b.declarations[declID]
	b.mu.RUnlock()
	if !ok {
		return nil, dErrors.Wrap(fmt.Errorf("declaration %s: %w", declID, sentinel.ErrNotFound), dErrors.CodeNotFound, "declaration not found").
			In(component, "Get")
	}
	return d, nil
}

// Deliver records receipt by the recipient; the declaration takes effect.
func (b *Book) Deliver(ctx context.Context, declID id.DeclarationID) (*models.Declaration, error) {
	d, err := b.transition(ctx, "Deliver", declID, audit.EventDeclarationEffective, (*models.Declaration).MarkAsDelivered)
	if err != nil {
		return nil, err
	}
	b.track(ctx, audit.EventDeclarationDelivered, d)
	return d, nil
}

// Activate makes a created declaration effective without a delivery record.
func (b *Book) Activate(ctx context.Context, declID id.DeclarationID) (*models.Declaration, error) {
	return b.transition(ctx, "Activate", declID, audit.EventDeclarationEffective, (*models.Declaration).MakeEffective)
}

// Revoke retracts a declaration that has not taken effect.
func (b *Book) Revoke(ctx context.Context, declID id.DeclarationID) (*models.Declaration, error) {
	return b.transition(ctx, "Revoke", declID, audit.EventDeclarationRevoked, (*models.Declaration).Revoke)
}

// Withdraw retracts an effective declaration.
func (b *Book) Withdraw(ctx context.Context, declID id.DeclarationID) (*models.Declaration, error) {
	return b.transition(ctx, "Withdraw", declID, audit.EventDeclarationWithdrawn, (*models.Declaration).Withdraw)
}

type applyFunc func(*models.Declaration, ...models.CommitHook) error

// transition applies a lifecycle step. The compliance record is written
// inside the declaration's commit hook, so a failed write leaves the status
// unchanged.
func (b *Book) transition(ctx context.Context, op string, declID id.DeclarationID, action audit.AuditEvent, apply applyFunc) (*models.Declaration, error) {
	ctx, span := b.tracer.Start(ctx, "intent."+op, trace.WithAttributes(attribute.String("declaration_id", declID.String())))
	defer span.End()

	d, err := b.Get(ctx, declID)
	if err != nil {
		b.fail(ctx, span, op, err)
		return nil, err
	}

	err = apply(d, func(from, to models.Status) error {
		if err := b.emit(ctx, action, d, to); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "declaration audit failed").
				In(component, op).
				WithEntities(d.Declarant().ID().String())
		}
		return nil
	})
	if err != nil {
		b.fail(ctx, span, op, err)
		return nil, err
	}

	status := d.Status()
	span.SetAttributes(attribute.String("status", string(status)))
	b.metrics.IncrementTransition(string(d.Kind()), string(status))
	if b.logger != nil {
		b.logger.InfoContext(ctx, "declaration transitioned",
			"declaration_id", d.ID().String(),
			"operation", op,
			"status", string(status),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return d, nil
}

// Counterparts lists the live declarations of complementary kind that can
// form a contract with declID, oldest first.
func (b *Book) Counterparts(ctx context.Context, declID id.DeclarationID) ([]*models.Declaration, error) {
	ctx, span := b.tracer.Start(ctx, "intent.Counterparts", trace.WithAttributes(attribute.String("declaration_id", declID.String())))
	defer span.End()

	d, err := b.Get(ctx, declID)
	if err != nil {
		b.fail(ctx, span, "Counterparts", err)
		return nil, err
	}

	b.mu.RLock()
	candidates := make([]*models.Declaration, 0, len(b.declarations))
	for _, other := range b.declarations {
		if other.ID() != d.ID() && d.Kind().Complements(other.Kind()) {
			candidates = append(candidates, other)
		}
	}
	b.mu.RUnlock()

	var found []*models.Declaration
	for _, other := range candidates {
		if b.canForm(ctx, d, other) {
			found = append(found, other)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt().Equal(found[j].CreatedAt()) {
			return found[i].CreatedAt().Before(found[j].CreatedAt())
		}
		return found[i].ID().String() < found[j].ID().String()
	})

	span.SetAttributes(attribute.Int("counterparts", len(found)))
	if len(found) > 0 {
		b.track(ctx, audit.EventDeclarationMatched, d)
	}
	return found, nil
}

// Match confirms that proposalID and acceptanceID are complementary halves
// that can form a contract now, and returns them in that order.
func (b *Book) Match(ctx context.Context, proposalID, acceptanceID id.DeclarationID) (*models.Declaration, *models.Declaration, error) {
	ctx, span := b.tracer.Start(ctx, "intent.Match", trace.WithAttributes(
		attribute.String("proposal_id", proposalID.String()),
		attribute.String("acceptance_id", acceptanceID.String()),
	))
	defer span.End()

	proposal, err := b.Get(ctx, proposalID)
	if err != nil {
		b.fail(ctx, span, "Match", err)
		return nil, nil, err
	}
	acceptance, err := b.Get(ctx, acceptanceID)
	if err != nil {
		b.fail(ctx, span, "Match", err)
		return nil, nil, err
	}

	if !proposal.Kind().IsProposal() || acceptance.Kind() != models.KindAcceptance {
		err := dErrors.Newf(dErrors.CodeMatchFailure, "%s and %s are not an offer and its acceptance", proposal.Kind(), acceptance.Kind()).
			In(component, "Match")
		b.fail(ctx, span, "Match", err)
		return nil, nil, err
	}
	if !b.canForm(ctx, proposal, acceptance) {
		err := dErrors.New(dErrors.CodeMatchFailure, "declarations cannot form a contract").
			In(component, "Match").
			WithEntities(proposal.Declarant().ID().String(), acceptance.Declarant().ID().String())
		b.fail(ctx, span, "Match", err)
		return nil, nil, err
	}

	b.track(ctx, audit.EventDeclarationMatched, proposal)
	return proposal, acceptance, nil
}

// canForm wraps CanFormContractWith with metrics and the optional trace log.
func (b *Book) canForm(ctx context.Context, d, other *models.Declaration) bool {
	ok := d.CanFormContractWith(other)
	b.metrics.IncrementMatchCheck(ok)
	if b.traceMatching && b.logger != nil {
		b.logger.DebugContext(ctx, "declaration match check",
			"declaration_id", d.ID().String(),
			"candidate_id", other.ID().String(),
			"match_code", d.MatchCode(),
			"candidate_match_code", other.MatchCode(),
			"valid", d.IsValid(),
			"candidate_valid", other.IsValid(),
			"result", ok,
		)
	}
	return ok
}

func (b *Book) emit(ctx context.Context, action audit.AuditEvent, d *models.Declaration, to models.Status) error {
	if b.auditor == nil {
		return nil
	}
	return b.auditor.Emit(ctx, audit.ComplianceEvent{
		EntityID:  d.Declarant().ID(),
		Subject:   d.ID().String(),
		Action:    string(action),
		Decision:  string(to),
		Reason:    string(d.Kind()),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.ActorID(ctx),
	})
}

func (b *Book) track(ctx context.Context, action audit.AuditEvent, d *models.Declaration) {
	if b.ops == nil {
		return
	}
	b.ops.Track(ctx, audit.OpsEvent{
		EntityID:  d.Declarant().ID(),
		Subject:   d.ID().String(),
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (b *Book) reject(ctx context.Context, op string, err error) {
	b.metrics.IncrementRejection(op, string(dErrors.CodeOf(err)))
	if b.logger != nil {
		b.logger.WarnContext(ctx, "declaration operation rejected",
			"operation", op,
			"code", string(dErrors.CodeOf(err)),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (b *Book) fail(ctx context.Context, span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	b.reject(ctx, op, err)
}
