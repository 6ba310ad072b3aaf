package models

import (
	"slices"
	"strings"
	"sync"
	"time"

	entity "civitas/internal/entity/models"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

const declarationComponent = "IntentDeclaration"

type Kind string

const (
	KindOffer           Kind = "offer"
	KindAcceptance      Kind = "acceptance"
	KindCounterOffer    Kind = "counter_offer"
	KindRevocation      Kind = "revocation"
	KindWithdrawal      Kind = "withdrawal"
	KindOfferInvitation Kind = "offer_invitation"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindOffer, KindAcceptance, KindCounterOffer, KindRevocation, KindWithdrawal, KindOfferInvitation:
		return true
	}
	return false
}

// IsProposal reports whether the kind puts terms on the table for the
// other side to accept.
func (k Kind) IsProposal() bool {
	return k == KindOffer || k == KindCounterOffer
}

// Complements reports whether k and other are the two halves of a deal.
func (k Kind) Complements(other Kind) bool {
	return (k.IsProposal() && other == KindAcceptance) || (k == KindAcceptance && other.IsProposal())
}

type Status string

const (
	StatusCreated   Status = "created"
	StatusEffective Status = "effective"
	StatusRevoked   Status = "revoked"
	StatusWithdrawn Status = "withdrawn"
)

// IsTerminal is true for revoked and withdrawn declarations.
func (s Status) IsTerminal() bool {
	return s == StatusRevoked || s == StatusWithdrawn
}

// CommitHook runs under the declaration lock once a transition is known to
// be legal and before it is applied. An error aborts the transition.
type CommitHook func(from, to Status) error

// Option configures declaration construction.
type Option func(*declOptions)

type declOptions struct {
	id         id.DeclarationID
	now        func() time.Time
	validUntil *time.Time
	digest     DigestAlgorithm
}

func WithID(declID id.DeclarationID) Option {
	return func(o *declOptions) { o.id = declID }
}

func WithClock(now func() time.Time) Option {
	return func(o *declOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithValidUntil sets the deadline after which the declaration lapses.
func WithValidUntil(t time.Time) Option {
	return func(o *declOptions) { o.validUntil = &t }
}

// WithDigest selects the hash used for the match code.
func WithDigest(alg DigestAlgorithm) Option {
	return func(o *declOptions) { o.digest = alg }
}

// Declaration is an expression of will toward forming a contract. Identity,
// parties, content and match code are fixed at construction; only status
// and delivery time change, through the lifecycle methods.
type Declaration struct {
	id         id.DeclarationID
	kind       Kind
	declarant  entity.Entity
	recipient  entity.Entity
	content    Content
	createdAt  time.Time
	validUntil *time.Time
	matchCode  string
	now        func() time.Time

	mu          sync.RWMutex
	status      Status
	deliveredAt *time.Time
}

// NewDeclaration checks both parties' capacity before anything is built.
// recipient may be nil for a declaration to the public.
func NewDeclaration(kind Kind, declarant, recipient entity.Entity, content Content, opts ...Option) (*Declaration, error) {
	o := declOptions{now: time.Now, digest: DigestSHA256}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id.IsNil() {
		o.id = id.NewDeclarationID()
	}

	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid declaration kind %q", kind).In(declarationComponent, "New")
	}
	if entity.IsNil(declarant) {
		return nil, dErrors.New(dErrors.CodeRelationMalformed, "declarant is required").In(declarationComponent, "New")
	}
	if recipient != nil && entity.IsNil(recipient) {
		return nil, dErrors.New(dErrors.CodeRelationMalformed, "recipient is a nil entity").In(declarationComponent, "New")
	}
	if !declarant.HasCapacity() {
		return nil, dErrors.New(dErrors.CodeCapacityLacking, "declarant lacks capacity").
			In(declarationComponent, "New").
			WithEntities(declarant.ID().String())
	}
	if recipient != nil {
		if recipient.ID() == declarant.ID() {
			return nil, dErrors.New(dErrors.CodeRelationMalformed, "declarant cannot address itself").
				In(declarationComponent, "New").
				WithEntities(declarant.ID().String())
		}
		if !recipient.HasCapacity() {
			return nil, dErrors.New(dErrors.CodeCapacityLacking, "recipient lacks capacity").
				In(declarationComponent, "New").
				WithEntities(recipient.ID().String())
		}
	}

	createdAt := o.now()
	if o.validUntil != nil && !o.validUntil.After(createdAt) {
		return nil, dErrors.New(dErrors.CodeTimingWrong, "validity deadline must be after creation").
			In(declarationComponent, "New")
	}

	d := &Declaration{
		id:         o.id,
		kind:       kind,
		declarant:  declarant,
		recipient:  recipient,
		content:    content.Clone(),
		createdAt:  createdAt,
		validUntil: cloneTime(o.validUntil),
		now:        o.now,
		status:     StatusCreated,
	}
	d.matchCode = computeMatchCode(o.digest, declarant, recipient, d.content)
	return d, nil
}

// computeMatchCode hashes the sorted party ids joined by "|" followed by the
// essential hash. Sorting makes A->B and B->A produce the same code.
func computeMatchCode(alg DigestAlgorithm, declarant, recipient entity.Entity, content Content) string {
	parties := []string{declarant.ID().String()}
	if recipient != nil {
		parties = append(parties, recipient.ID().String())
	}
	slices.Sort(parties)
	return alg.Sum(strings.Join(parties, "|") + "|" + content.EssentialHashWith(alg))
}

func (d *Declaration) ID() id.DeclarationID     { return d.id }
func (d *Declaration) Kind() Kind               { return d.kind }
func (d *Declaration) Declarant() entity.Entity { return d.declarant }
func (d *Declaration) MatchCode() string        { return d.matchCode }
func (d *Declaration) CreatedAt() time.Time     { return d.createdAt }

// Recipient returns the addressee, if any.
func (d *Declaration) Recipient() (entity.Entity, bool) {
	return d.recipient, d.recipient != nil
}

// Content returns a copy; the declaration's own content never leaves it.
func (d *Declaration) Content() Content { return d.content.Clone() }

func (d *Declaration) ValidUntil() (time.Time, bool) {
	if d.validUntil == nil {
		return time.Time{}, false
	}
	return *d.validUntil, true
}

func (d *Declaration) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Declaration) DeliveredAt() (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.deliveredAt == nil {
		return time.Time{}, false
	}
	return *d.deliveredAt, true
}

// IsValid reports whether the declaration is effective and not past its
// deadline at the declaration's clock.
func (d *Declaration) IsValid() bool {
	return d.IsValidAt(d.now())
}

func (d *Declaration) IsValidAt(now time.Time) bool {
	if d.Status() != StatusEffective {
		return false
	}
	return !d.expiredAt(now)
}

func (d *Declaration) expiredAt(now time.Time) bool {
	return d.validUntil != nil && now.After(*d.validUntil)
}

// CanFormContractWith holds when both declarations are valid and share a
// match code.
func (d *Declaration) CanFormContractWith(other *Declaration) bool {
	if other == nil {
		return false
	}
	return d.IsValid() && other.IsValid() && d.matchCode == other.matchCode
}

// Matches is the looser duplicate check: same match code, or same kind
// between the same declarant and recipient.
func (d *Declaration) Matches(other *Declaration) bool {
	if other == nil {
		return false
	}
	if d.matchCode == other.matchCode {
		return true
	}
	return d.kind == other.kind &&
		d.declarant.ID() == other.declarant.ID() &&
		recipientID(d) == recipientID(other)
}

func recipientID(d *Declaration) id.EntityID {
	if d.recipient == nil {
		return id.EntityID{}
	}
	return d.recipient.ID()
}

// MakeEffective activates a created declaration.
func (d *Declaration) MakeEffective(hooks ...CommitHook) error {
	return d.transition("MakeEffective", StatusCreated, StatusEffective, false, hooks)
}

// MarkAsDelivered records receipt by the recipient. Delivery is what makes a
// declaration take effect, so it moves straight to effective.
func (d *Declaration) MarkAsDelivered(hooks ...CommitHook) error {
	return d.transition("MarkAsDelivered", StatusCreated, StatusEffective, true, hooks)
}

// Revoke retracts a declaration before it takes effect.
func (d *Declaration) Revoke(hooks ...CommitHook) error {
	return d.transition("Revoke", StatusCreated, StatusRevoked, false, hooks)
}

// Withdraw retracts an effective declaration.
func (d *Declaration) Withdraw(hooks ...CommitHook) error {
	return d.transition("Withdraw", StatusEffective, StatusWithdrawn, false, hooks)
}

func (d *Declaration) transition(op string, from, to Status, delivered bool, hooks []CommitHook) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status != from {
		return dErrors.Newf(dErrors.CodeIntentStatusIllegal, "%s requires status %s, declaration is %s", op, from, d.status).
			In(declarationComponent, op).
			WithEntities(d.declarant.ID().String())
	}
	now := d.now()
	if to == StatusEffective && d.expiredAt(now) {
		return dErrors.New(dErrors.CodeIntentStatusVoid, "declaration lapsed before taking effect").
			In(declarationComponent, op).
			WithEntities(d.declarant.ID().String())
	}
	for _, hook := range hooks {
		if err := hook(d.status, to); err != nil {
			return err
		}
	}

	d.status = to
	if delivered {
		d.deliveredAt = &now
	}
	return nil
}
