package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"civitas/internal/capacity"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

// LegalPersonKind is the organizational form of a legal person.
type LegalPersonKind string

const (
	CompanyLimited         LegalPersonKind = "company_limited"
	CompanyJointStock      LegalPersonKind = "company_joint_stock"
	CompanyForeignInvested LegalPersonKind = "company_foreign_invested"
	CompanyStateOwned      LegalPersonKind = "company_state_owned"
	Institution            LegalPersonKind = "institution"
	SocialOrganization     LegalPersonKind = "social_organization"
	Foundation             LegalPersonKind = "foundation"
)

func (k LegalPersonKind) IsValid() bool {
	switch k {
	case CompanyLimited, CompanyJointStock, CompanyForeignInvested, CompanyStateOwned,
		Institution, SocialOrganization, Foundation:
		return true
	}
	return false
}

func (k LegalPersonKind) IsCompany() bool {
	return strings.HasPrefix(string(k), "company_")
}

// LegalPersonParams are the registration facts of a legal person.
type LegalPersonParams struct {
	Kind                LegalPersonKind
	RegisteredCapital   decimal.Decimal
	LegalRepresentative id.EntityID
	RegisteredAddress   string
	EstablishedAt       time.Time
	Activities          []string
}

func (p LegalPersonParams) validate() error {
	if !p.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid legal person kind %q", p.Kind).In("LegalPerson", "New")
	}
	if err := validateCapital(p.RegisteredCapital); err != nil {
		return err.In("LegalPerson", "New")
	}
	if p.LegalRepresentative.IsNil() {
		return dErrors.New(dErrors.CodeRelationMalformed, "legal representative is required").In("LegalPerson", "New")
	}
	if strings.TrimSpace(p.RegisteredAddress) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "registered address is required").In("LegalPerson", "New")
	}
	return nil
}

func validateCapital(c decimal.Decimal) *dErrors.Error {
	if !c.IsPositive() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "registered capital must be positive, got %s", c)
	}
	return nil
}

// LegalPerson is the single-owner variant.
type LegalPerson struct {
	id                  id.EntityID
	kind                LegalPersonKind
	registeredCapital   decimal.Decimal
	legalRepresentative id.EntityID
	registeredAddress   string
	establishedAt       time.Time
	scope               capacity.BusinessScope
	createdAt           time.Time
	updatedAt           time.Time
	now                 func() time.Time
}

func NewLegalPerson(params LegalPersonParams, opts ...Option) (*LegalPerson, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	now := o.now()
	return &LegalPerson{
		id:                  o.id,
		kind:                params.Kind,
		registeredCapital:   params.RegisteredCapital,
		legalRepresentative: params.LegalRepresentative,
		registeredAddress:   strings.TrimSpace(params.RegisteredAddress),
		establishedAt:       params.EstablishedAt,
		scope:               capacity.NewBusinessScope(params.Activities...),
		createdAt:           now,
		updatedAt:           now,
		now:                 o.now,
	}, nil
}

func (l *LegalPerson) entity() {}

func (l *LegalPerson) ID() id.EntityID           { return l.id }
func (l *LegalPerson) EntityType() id.EntityType { return id.EntityTypeLegalPerson }
func (l *LegalPerson) CreatedAt() time.Time      { return l.createdAt }
func (l *LegalPerson) UpdatedAt() time.Time      { return l.updatedAt }

func (l *LegalPerson) Kind() LegalPersonKind                { return l.kind }
func (l *LegalPerson) RegisteredCapital() decimal.Decimal   { return l.registeredCapital }
func (l *LegalPerson) LegalRepresentative() id.EntityID     { return l.legalRepresentative }
func (l *LegalPerson) RegisteredAddress() string            { return l.registeredAddress }
func (l *LegalPerson) EstablishedAt() time.Time             { return l.establishedAt }
func (l *LegalPerson) BusinessScope() capacity.BusinessScope { return l.scope.Clone() }

func (l *LegalPerson) CapacityStatus() capacity.Status {
	return checkShape(id.EntityTypeLegalPerson, l.scope.Clone())
}

// HasCapacity is true unless the business is suspended.
func (l *LegalPerson) HasCapacity() bool { return l.scope.Active() }

func (l *LegalPerson) CanPerformActivity(activity string) bool {
	return l.scope.CanPerformActivity(activity)
}

func (l *LegalPerson) AddActivity(activity string) error {
	if err := l.scope.AddActivity(activity); err != nil {
		return annotate(err, "LegalPerson", "AddActivity")
	}
	l.touch()
	return nil
}

func (l *LegalPerson) AddRestriction(restriction string) error {
	if err := l.scope.AddRestriction(restriction); err != nil {
		return annotate(err, "LegalPerson", "AddRestriction")
	}
	l.touch()
	return nil
}

func (l *LegalPerson) SetBusinessStatus(status capacity.BusinessStatus) error {
	if err := l.scope.SetStatus(status); err != nil {
		return annotate(err, "LegalPerson", "SetBusinessStatus")
	}
	l.touch()
	return nil
}

func (l *LegalPerson) ChangeLegalRepresentative(representative id.EntityID) error {
	if representative.IsNil() {
		return dErrors.New(dErrors.CodeRelationMalformed, "legal representative is required").
			In("LegalPerson", "ChangeLegalRepresentative")
	}
	l.legalRepresentative = representative
	l.touch()
	return nil
}

func (l *LegalPerson) UpdateRegisteredCapital(c decimal.Decimal) error {
	if err := validateCapital(c); err != nil {
		return err.In("LegalPerson", "UpdateRegisteredCapital")
	}
	l.registeredCapital = c
	l.touch()
	return nil
}

func (l *LegalPerson) UpdateRegisteredAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "registered address is required").
			In("LegalPerson", "UpdateRegisteredAddress")
	}
	l.registeredAddress = address
	l.touch()
	return nil
}

func (l *LegalPerson) touch() { l.updatedAt = l.now() }

// annotate stamps component and operation onto a domain error coming from a
// lower layer.
func annotate(err error, component, op string) error {
	if dErr, ok := err.(*dErrors.Error); ok {
		return dErr.In(component, op)
	}
	return err
}
