package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"civitas/internal/capacity"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

// OrgKind is the form of an unincorporated organization.
type OrgKind string

const (
	PartnershipGeneral OrgKind = "partnership_general"
	PartnershipLimited OrgKind = "partnership_limited"
	PartnershipSpecial OrgKind = "partnership_special"
	IndividualBusiness OrgKind = "individual_business"
	Branch             OrgKind = "branch"
	ResidentCommittee  OrgKind = "resident_committee"
	VillageCommittee   OrgKind = "village_committee"
	OtherOrg           OrgKind = "other"
)

func (k OrgKind) IsValid() bool {
	switch k {
	case PartnershipGeneral, PartnershipLimited, PartnershipSpecial, IndividualBusiness,
		Branch, ResidentCommittee, VillageCommittee, OtherOrg:
		return true
	}
	return false
}

func (k OrgKind) IsPartnership() bool {
	return strings.HasPrefix(string(k), "partnership_")
}

type PartnerType string

const (
	GeneralPartner PartnerType = "general"
	LimitedPartner PartnerType = "limited"
)

type LiabilityType string

const (
	LiabilityUnlimited LiabilityType = "unlimited"
	LiabilityLimited   LiabilityType = "limited"
)

// Partner is a member of a partnership.
type Partner struct {
	ID           id.EntityID
	Type         PartnerType
	Contribution decimal.Decimal
	// ProfitShare is a fraction in [0, 1].
	ProfitShare decimal.Decimal
	Liability   LiabilityType
}

// OrgParams are the registration facts of an unincorporated organization.
type OrgParams struct {
	Kind              OrgKind
	RegisteredAddress string
	EstablishedAt     time.Time
	Authorities       []string
}

// members is the partner list shared by both org variants.
type members []Partner

func (m members) find(partnerID id.EntityID) (Partner, bool) {
	for _, p := range m {
		if p.ID == partnerID {
			return p, true
		}
	}
	return Partner{}, false
}

func (m members) totalShare() decimal.Decimal {
	total := decimal.Zero
	for _, p := range m {
		total = total.Add(p.ProfitShare)
	}
	return total
}

// admit validates p against the org kind and current members.
func (m members) admit(kind OrgKind, p Partner) *dErrors.Error {
	if !kind.IsPartnership() {
		return dErrors.New(dErrors.CodeCapacityLacking, "only a partnership can admit partners")
	}
	if p.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "partner id is required")
	}
	if p.Type != GeneralPartner && p.Type != LimitedPartner {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid partner type %q", p.Type)
	}
	if p.Liability != LiabilityUnlimited && p.Liability != LiabilityLimited {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid liability type %q", p.Liability)
	}
	if p.Contribution.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "contribution cannot be negative")
	}
	if p.ProfitShare.IsNegative() || p.ProfitShare.GreaterThan(decimal.NewFromInt(1)) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "profit share must be within [0,1], got %s", p.ProfitShare)
	}
	if _, dup := m.find(p.ID); dup {
		return dErrors.New(dErrors.CodeConflict, "partner already admitted").WithEntities(p.ID.String())
	}
	if m.totalShare().Add(p.ProfitShare).GreaterThan(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeInvalidInput, "total profit share would exceed 1")
	}
	return nil
}

func (m members) clone() []Partner {
	return append([]Partner{}, m...)
}

func checkExecutive(kind OrgKind, m members, partnerID id.EntityID) *dErrors.Error {
	if !kind.IsPartnership() {
		return dErrors.New(dErrors.CodeCapacityLacking, "only a partnership has an executive partner")
	}
	p, ok := m.find(partnerID)
	if !ok {
		return dErrors.New(dErrors.CodeEntity, "partner not found").WithEntities(partnerID.String())
	}
	if p.Type != GeneralPartner {
		return dErrors.New(dErrors.CodeRelationMalformed, "executive partner must be a general partner").
			WithEntities(partnerID.String())
	}
	return nil
}

func checkProprietor(kind OrgKind, proprietor id.EntityID) *dErrors.Error {
	if kind != IndividualBusiness {
		return dErrors.New(dErrors.CodeCapacityLacking, "only an individual business has a proprietor")
	}
	if proprietor.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "proprietor id is required")
	}
	return nil
}

func (p OrgParams) validate() error {
	if !p.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid organization kind %q", p.Kind).In("UnincorporatedOrg", "New")
	}
	if strings.TrimSpace(p.RegisteredAddress) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "registered address is required").In("UnincorporatedOrg", "New")
	}
	return nil
}

// UnincorporatedOrg is the single-owner variant.
type UnincorporatedOrg struct {
	id                id.EntityID
	kind              OrgKind
	executivePartner  *id.EntityID
	proprietor        *id.EntityID
	members           members
	registeredAddress string
	establishedAt     time.Time
	scope             capacity.AuthorityScope
	createdAt         time.Time
	updatedAt         time.Time
	now               func() time.Time
}

func NewUnincorporatedOrg(params OrgParams, opts ...Option) (*UnincorporatedOrg, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	now := o.now()
	return &UnincorporatedOrg{
		id:                o.id,
		kind:              params.Kind,
		registeredAddress: strings.TrimSpace(params.RegisteredAddress),
		establishedAt:     params.EstablishedAt,
		scope:             capacity.NewAuthorityScope(params.Authorities...),
		createdAt:         now,
		updatedAt:         now,
		now:               o.now,
	}, nil
}

func (u *UnincorporatedOrg) entity() {}

func (u *UnincorporatedOrg) ID() id.EntityID           { return u.id }
func (u *UnincorporatedOrg) EntityType() id.EntityType { return id.EntityTypeUnincorporatedOrg }
func (u *UnincorporatedOrg) CreatedAt() time.Time      { return u.createdAt }
func (u *UnincorporatedOrg) UpdatedAt() time.Time      { return u.updatedAt }

func (u *UnincorporatedOrg) Kind() OrgKind             { return u.kind }
func (u *UnincorporatedOrg) RegisteredAddress() string { return u.registeredAddress }
func (u *UnincorporatedOrg) EstablishedAt() time.Time  { return u.establishedAt }
func (u *UnincorporatedOrg) Members() []Partner        { return u.members.clone() }

func (u *UnincorporatedOrg) AuthorityScope() capacity.AuthorityScope { return u.scope.Clone() }

func (u *UnincorporatedOrg) ExecutivePartner() (id.EntityID, bool) {
	if u.executivePartner == nil {
		return id.EntityID{}, false
	}
	return *u.executivePartner, true
}

func (u *UnincorporatedOrg) Proprietor() (id.EntityID, bool) {
	if u.proprietor == nil {
		return id.EntityID{}, false
	}
	return *u.proprietor, true
}

func (u *UnincorporatedOrg) CapacityStatus() capacity.Status {
	return checkShape(id.EntityTypeUnincorporatedOrg, u.scope.Clone())
}

// HasCapacity is true unless the organization's authority is suspended.
func (u *UnincorporatedOrg) HasCapacity() bool { return u.scope.Active() }

func (u *UnincorporatedOrg) CanPerformActivity(activity string) bool {
	return u.scope.CanPerformActivity(activity)
}

func (u *UnincorporatedOrg) AddPartner(p Partner) error {
	if err := u.members.admit(u.kind, p); err != nil {
		return err.In("UnincorporatedOrg", "AddPartner")
	}
	u.members = append(u.members, p)
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) SetExecutivePartner(partnerID id.EntityID) error {
	if err := checkExecutive(u.kind, u.members, partnerID); err != nil {
		return err.In("UnincorporatedOrg", "SetExecutivePartner")
	}
	u.executivePartner = &partnerID
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) SetProprietor(proprietor id.EntityID) error {
	if err := checkProprietor(u.kind, proprietor); err != nil {
		return err.In("UnincorporatedOrg", "SetProprietor")
	}
	u.proprietor = &proprietor
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) AddAuthority(authority string) error {
	if err := u.scope.AddAuthority(authority); err != nil {
		return annotate(err, "UnincorporatedOrg", "AddAuthority")
	}
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) AddRestriction(restriction string) error {
	if err := u.scope.AddRestriction(restriction); err != nil {
		return annotate(err, "UnincorporatedOrg", "AddRestriction")
	}
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) SetAuthorityStatus(status capacity.AuthorityStatus) error {
	if err := u.scope.SetStatus(status); err != nil {
		return annotate(err, "UnincorporatedOrg", "SetAuthorityStatus")
	}
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) UpdateRegisteredAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "registered address is required").
			In("UnincorporatedOrg", "UpdateRegisteredAddress")
	}
	u.registeredAddress = address
	u.touch()
	return nil
}

func (u *UnincorporatedOrg) touch() { u.updatedAt = u.now() }
