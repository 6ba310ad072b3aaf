package models

import (
	"slices"
	"strings"
	"sync"
	"time"

	entity "civitas/internal/entity/models"
	intent "civitas/internal/intent/models"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusEffective  Status = "effective"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
	StatusRevoked    Status = "revoked"
	StatusInvalid    Status = "invalid"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusTerminated, StatusRevoked, StatusInvalid:
		return true
	}
	return false
}

// Term is a numbered clause. Numbers start at 1 and follow insertion order.
type Term struct {
	Number  int
	Content string
}

// CommitHook runs under the contract lock once a transition is known to be
// legal and before it is applied. An error aborts the transition.
type CommitHook func(from, to Status) error

// Agreement is what every contract shape exposes.
type Agreement interface {
	ID() id.ContractID
	Parties() []entity.Entity
	CreatedAt() time.Time
	Status() Status
	Validate() error
	MakeEffective(hooks ...CommitHook) error
	Terminate(hooks ...CommitHook) error
	Invalidate(reason string, hooks ...CommitHook) error
}

// Typical is a contract type the civil code names, with its own statutory
// requirements on top of the base ones.
type Typical interface {
	Agreement
	ValidateLegalRequirements() error
}

type Option func(*options)

type options struct {
	id        id.ContractID
	now       func() time.Time
	terms     []string
	timeLimit *time.Time
}

func WithID(contractID id.ContractID) Option {
	return func(o *options) { o.id = contractID }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTerms appends clauses in order.
func WithTerms(contents ...string) Option {
	return func(o *options) { o.terms = append(o.terms, contents...) }
}

// WithTimeLimit sets the date performance must start by.
func WithTimeLimit(t time.Time) Option {
	return func(o *options) { o.timeLimit = &t }
}

// Contract is the base aggregate: parties, the declarations that formed it,
// its terms and its lifecycle.
type Contract struct {
	id           id.ContractID
	parties      []entity.Entity
	declarations []*intent.Declaration
	createdAt    time.Time
	timeLimit    *time.Time
	now          func() time.Time

	mu               sync.RWMutex
	terms            []Term
	status           Status
	effectiveAt      *time.Time
	invalidityReason string
}

func New(parties []entity.Entity, declarations []*intent.Declaration, opts ...Option) *Contract {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id.IsNil() {
		o.id = id.NewContractID()
	}
	c := &Contract{
		id:           o.id,
		parties:      slices.Clone(parties),
		declarations: slices.Clone(declarations),
		createdAt:    o.now(),
		timeLimit:    o.timeLimit,
		now:          o.now,
		status:       StatusCreated,
	}
	for _, content := range o.terms {
		c.terms = append(c.terms, Term{Number: len(c.terms) + 1, Content: content})
	}
	return c
}

func (c *Contract) ID() id.ContractID                   { return c.id }
func (c *Contract) Parties() []entity.Entity            { return slices.Clone(c.parties) }
func (c *Contract) Declarations() []*intent.Declaration { return slices.Clone(c.declarations) }
func (c *Contract) CreatedAt() time.Time                { return c.createdAt }

func (c *Contract) TimeLimit() (time.Time, bool) {
	if c.timeLimit == nil {
		return time.Time{}, false
	}
	return *c.timeLimit, true
}

func (c *Contract) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Contract) EffectiveAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.effectiveAt == nil {
		return time.Time{}, false
	}
	return *c.effectiveAt, true
}

func (c *Contract) Terms() []Term {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.terms)
}

// InvalidityReason is set once the contract is invalidated.
func (c *Contract) InvalidityReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.invalidityReason
}

// AddTerm appends a clause. Terms are fixed once the contract is effective.
func (c *Contract) AddTerm(content string) (Term, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Term{}, dErrors.New(dErrors.CodeInvalidInput, "term content is required").In("Contract", "AddTerm")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusCreated {
		return Term{}, dErrors.Newf(dErrors.CodeContractStatusIllegal, "terms are fixed once the contract is %s", c.status).
			In("Contract", "AddTerm")
	}
	t := Term{Number: len(c.terms) + 1, Content: content}
	c.terms = append(c.terms, t)
	return t, nil
}

// ValidateParties requires at least one party and capacity for all of them.
func (c *Contract) ValidateParties() error {
	if len(c.parties) == 0 {
		return dErrors.New(dErrors.CodePartyUnqualified, "contract has no parties").In("Contract", "ValidateParties")
	}
	for _, p := range c.parties {
		if err := CheckParty(p); err != nil {
			return err
		}
	}
	return nil
}

// CheckParty fails when p cannot bind itself. The error carries both the
// contract and entity codes.
func CheckParty(p entity.Entity) error {
	if entity.IsNil(p) {
		return dErrors.New(dErrors.CodePartyUnqualified, "party is missing").In("Contract", "ValidateParties")
	}
	if !p.HasCapacity() {
		cause := dErrors.New(dErrors.CodeCapacityLacking, "party lacks capacity").WithEntities(p.ID().String())
		return dErrors.Wrap(cause, dErrors.CodePartyUnqualified, "party is not qualified").
			In("Contract", "ValidateParties").
			WithEntities(p.ID().String())
	}
	return nil
}

// ValidateDeclarations requires an offer and an acceptance whose essential
// terms agree. A counter-offer counts as an offer.
func (c *Contract) ValidateDeclarations() error {
	var offer, acceptance *intent.Declaration
	for _, d := range c.declarations {
		switch {
		case d == nil:
		case offer == nil && d.Kind().IsProposal():
			offer = d
		case acceptance == nil && d.Kind() == intent.KindAcceptance:
			acceptance = d
		}
	}
	if offer == nil {
		return dErrors.New(dErrors.CodeElementMissing, "offer is missing").In("Contract", "ValidateDeclarations")
	}
	if acceptance == nil {
		return dErrors.New(dErrors.CodeElementMissing, "acceptance is missing").In("Contract", "ValidateDeclarations")
	}
	if !offer.Content().MatchesEssentialTerms(acceptance.Content()) {
		return dErrors.New(dErrors.CodeMatchFailure, "offer and acceptance disagree on essential terms").
			In("Contract", "ValidateDeclarations")
	}
	return nil
}

// Validate runs the party and declaration checks.
func (c *Contract) Validate() error {
	if err := c.ValidateParties(); err != nil {
		return err
	}
	return c.ValidateDeclarations()
}

// MakeEffective validates and moves a created contract to effective.
func (c *Contract) MakeEffective(hooks ...CommitHook) error {
	return c.makeEffective(c.Validate, hooks)
}

func (c *Contract) makeEffective(validate func() error, hooks []CommitHook) error {
	return c.transition("MakeEffective", []Status{StatusCreated}, StatusEffective, validate, hooks, func(now time.Time) {
		c.effectiveAt = &now
	})
}

// Start begins performance. It fails once the time limit has passed.
func (c *Contract) Start(hooks ...CommitHook) error {
	check := func() error {
		if c.timeLimit != nil && c.now().After(*c.timeLimit) {
			return dErrors.New(dErrors.CodeTimingWrong, "performance time limit has passed").In("Contract", "Start")
		}
		return nil
	}
	return c.transition("Start", []Status{StatusEffective}, StatusInProgress, check, hooks, nil)
}

func (c *Contract) Complete(hooks ...CommitHook) error {
	return c.transition("Complete", []Status{StatusInProgress}, StatusCompleted, nil, hooks, nil)
}

// Terminate ends an effective or running contract.
func (c *Contract) Terminate(hooks ...CommitHook) error {
	return c.transition("Terminate", []Status{StatusEffective, StatusInProgress}, StatusTerminated, nil, hooks, nil)
}

// Revoke retracts a contract that never took effect.
func (c *Contract) Revoke(hooks ...CommitHook) error {
	return c.transition("Revoke", []Status{StatusCreated}, StatusRevoked, nil, hooks, nil)
}

// Invalidate voids a contract from any non-terminal status.
func (c *Contract) Invalidate(reason string, hooks ...CommitHook) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "invalidity reason is required").In("Contract", "Invalidate")
	}
	from := []Status{StatusCreated, StatusEffective, StatusInProgress}
	return c.transition("Invalidate", from, StatusInvalid, nil, hooks, func(time.Time) {
		c.invalidityReason = reason
	})
}

func (c *Contract) transition(op string, from []Status, to Status, check func() error, hooks []CommitHook, apply func(now time.Time)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !slices.Contains(from, c.status) {
		return dErrors.Newf(dErrors.CodeContractStatusIllegal, "%s is not allowed from status %s", op, c.status).
			In("Contract", op)
	}
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}
	for _, hook := range hooks {
		if err := hook(c.status, to); err != nil {
			return err
		}
	}

	c.status = to
	if apply != nil {
		apply(c.now())
	}
	return nil
}
