package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"civitas/internal/capacity"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

// Locked variants. Every mutable field sits behind its own RW lock so reads
// run concurrently. Mutators take a context and first acquire the entity's
// write gate; when the context ends before the gate is free they return a
// lock_failure error and change nothing.

// SyncNaturalPerson is the shareable natural-person variant.
type SyncNaturalPerson struct {
	id        id.EntityID
	birthDate time.Time
	createdAt time.Time
	now       func() time.Time
	gate      writeGate

	mentalStatus guarded[capacity.MentalStatus]
	guardianship guarded[*Guardianship]
	isGuardian   guarded[bool]
	updatedAt    guarded[time.Time]
}

func NewSyncNaturalPerson(birthDate time.Time, mental capacity.MentalStatus, opts ...Option) (*SyncNaturalPerson, error) {
	p, err := NewNaturalPerson(birthDate, mental, opts...)
	if err != nil {
		return nil, err
	}
	return FromNaturalPerson(p), nil
}

// FromNaturalPerson converts a single-owner person into the locked variant.
// The source must not be used afterwards.
func FromNaturalPerson(p *NaturalPerson) *SyncNaturalPerson {
	s := &SyncNaturalPerson{
		id:        p.id,
		birthDate: p.birthDate,
		createdAt: p.createdAt,
		now:       p.now,
		gate:      newWriteGate(),
	}
	s.mentalStatus.v = p.mentalStatus
	if p.guardianship != nil {
		g := p.guardianship.clone()
		s.guardianship.v = &g
	}
	s.isGuardian.v = p.isGuardian
	s.updatedAt.v = p.updatedAt
	return s
}

func (s *SyncNaturalPerson) entity() {}

func (s *SyncNaturalPerson) ID() id.EntityID           { return s.id }
func (s *SyncNaturalPerson) EntityType() id.EntityType { return id.EntityTypeNaturalPerson }
func (s *SyncNaturalPerson) CreatedAt() time.Time      { return s.createdAt }
func (s *SyncNaturalPerson) UpdatedAt() time.Time      { return s.updatedAt.load() }
func (s *SyncNaturalPerson) BirthDate() time.Time      { return s.birthDate }
func (s *SyncNaturalPerson) Now() time.Time            { return s.now() }

func (s *SyncNaturalPerson) MentalStatus() capacity.MentalStatus { return s.mentalStatus.load() }

func (s *SyncNaturalPerson) Age() int {
	return capacity.Age(s.birthDate, s.now())
}

func (s *SyncNaturalPerson) NaturalCapacity() capacity.NaturalCapacity {
	return capacity.Evaluate(s.birthDate, s.mentalStatus.load(), s.now())
}

func (s *SyncNaturalPerson) CapacityStatus() capacity.Status {
	return checkShape(id.EntityTypeNaturalPerson, s.NaturalCapacity())
}

func (s *SyncNaturalPerson) HasCapacity() bool {
	return s.NaturalCapacity() == capacity.CapacityFull
}

func (s *SyncNaturalPerson) CanBeGuardian() bool {
	mental := s.mentalStatus.load()
	now := s.now()
	return capacity.CanActAsGuardian(
		capacity.Evaluate(s.birthDate, mental, now),
		mental,
		capacity.Age(s.birthDate, now),
	)
}

func (s *SyncNaturalPerson) Guardianship() (Guardianship, bool) {
	g := s.guardianship.load()
	if g == nil {
		return Guardianship{}, false
	}
	return g.clone(), true
}

func (s *SyncNaturalPerson) IsGuardian() bool { return s.isGuardian.load() }

// Acquire takes the write gate. The returned release is idempotent.
func (s *SyncNaturalPerson) Acquire(ctx context.Context) (func(), error) {
	return s.gate.acquire(ctx, "SyncNaturalPerson", s.id)
}

func (s *SyncNaturalPerson) AttachGuardianship(g Guardianship) {
	g = g.clone()
	s.guardianship.store(&g)
	s.updatedAt.store(s.now())
}

func (s *SyncNaturalPerson) DetachGuardianship() {
	s.guardianship.store(nil)
	s.updatedAt.store(s.now())
}

func (s *SyncNaturalPerson) MarkAsGuardian(isGuardian bool) {
	s.isGuardian.store(isGuardian)
	s.updatedAt.store(s.now())
}

func (s *SyncNaturalPerson) UpdateMentalStatus(ctx context.Context, mental capacity.MentalStatus) error {
	if !mental.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid mental status %q", mental).
			In("SyncNaturalPerson", "UpdateMentalStatus")
	}
	release, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	s.mentalStatus.store(mental)
	s.updatedAt.store(s.now())
	return nil
}

// SyncLegalPerson is the shareable legal-person variant.
type SyncLegalPerson struct {
	id            id.EntityID
	kind          LegalPersonKind
	establishedAt time.Time
	createdAt     time.Time
	now           func() time.Time
	gate          writeGate

	registeredCapital   guarded[decimal.Decimal]
	legalRepresentative guarded[id.EntityID]
	registeredAddress   guarded[string]
	scope               guarded[capacity.BusinessScope]
	updatedAt           guarded[time.Time]
}

func NewSyncLegalPerson(params LegalPersonParams, opts ...Option) (*SyncLegalPerson, error) {
	l, err := NewLegalPerson(params, opts...)
	if err != nil {
		return nil, err
	}
	return FromLegalPerson(l), nil
}

// FromLegalPerson converts a single-owner legal person into the locked variant.
func FromLegalPerson(l *LegalPerson) *SyncLegalPerson {
	s := &SyncLegalPerson{
		id:            l.id,
		kind:          l.kind,
		establishedAt: l.establishedAt,
		createdAt:     l.createdAt,
		now:           l.now,
		gate:          newWriteGate(),
	}
	s.registeredCapital.v = l.registeredCapital
	s.legalRepresentative.v = l.legalRepresentative
	s.registeredAddress.v = l.registeredAddress
	s.scope.v = l.scope.Clone()
	s.updatedAt.v = l.updatedAt
	return s
}

func (s *SyncLegalPerson) entity() {}

func (s *SyncLegalPerson) ID() id.EntityID           { return s.id }
func (s *SyncLegalPerson) EntityType() id.EntityType { return id.EntityTypeLegalPerson }
func (s *SyncLegalPerson) CreatedAt() time.Time      { return s.createdAt }
func (s *SyncLegalPerson) UpdatedAt() time.Time      { return s.updatedAt.load() }
func (s *SyncLegalPerson) Kind() LegalPersonKind     { return s.kind }
func (s *SyncLegalPerson) EstablishedAt() time.Time  { return s.establishedAt }

func (s *SyncLegalPerson) RegisteredCapital() decimal.Decimal { return s.registeredCapital.load() }
func (s *SyncLegalPerson) LegalRepresentative() id.EntityID   { return s.legalRepresentative.load() }
func (s *SyncLegalPerson) RegisteredAddress() string          { return s.registeredAddress.load() }

func (s *SyncLegalPerson) BusinessScope() capacity.BusinessScope {
	s.scope.mu.RLock()
	defer s.scope.mu.RUnlock()
	return s.scope.v.Clone()
}

func (s *SyncLegalPerson) CapacityStatus() capacity.Status {
	return checkShape(id.EntityTypeLegalPerson, s.BusinessScope())
}

func (s *SyncLegalPerson) HasCapacity() bool { return s.BusinessScope().Active() }

func (s *SyncLegalPerson) CanPerformActivity(activity string) bool {
	s.scope.mu.RLock()
	defer s.scope.mu.RUnlock()
	return s.scope.v.CanPerformActivity(activity)
}

func (s *SyncLegalPerson) mutate(ctx context.Context, op string, fn func() error) error {
	release, err := s.gate.acquire(ctx, "SyncLegalPerson", s.id)
	if err != nil {
		return err
	}
	defer release()
	if err := fn(); err != nil {
		return annotate(err, "SyncLegalPerson", op)
	}
	s.updatedAt.store(s.now())
	return nil
}

func (s *SyncLegalPerson) AddActivity(ctx context.Context, activity string) error {
	return s.mutate(ctx, "AddActivity", func() error {
		return s.scope.update(func(b *capacity.BusinessScope) error { return b.AddActivity(activity) })
	})
}

func (s *SyncLegalPerson) AddRestriction(ctx context.Context, restriction string) error {
	return s.mutate(ctx, "AddRestriction", func() error {
		return s.scope.update(func(b *capacity.BusinessScope) error { return b.AddRestriction(restriction) })
	})
}

func (s *SyncLegalPerson) SetBusinessStatus(ctx context.Context, status capacity.BusinessStatus) error {
	return s.mutate(ctx, "SetBusinessStatus", func() error {
		return s.scope.update(func(b *capacity.BusinessScope) error { return b.SetStatus(status) })
	})
}

func (s *SyncLegalPerson) ChangeLegalRepresentative(ctx context.Context, representative id.EntityID) error {
	return s.mutate(ctx, "ChangeLegalRepresentative", func() error {
		if representative.IsNil() {
			return dErrors.New(dErrors.CodeRelationMalformed, "legal representative is required")
		}
		s.legalRepresentative.store(representative)
		return nil
	})
}

func (s *SyncLegalPerson) UpdateRegisteredCapital(ctx context.Context, c decimal.Decimal) error {
	return s.mutate(ctx, "UpdateRegisteredCapital", func() error {
		if err := validateCapital(c); err != nil {
			return err
		}
		s.registeredCapital.store(c)
		return nil
	})
}

func (s *SyncLegalPerson) UpdateRegisteredAddress(ctx context.Context, address string) error {
	return s.mutate(ctx, "UpdateRegisteredAddress", func() error {
		address = strings.TrimSpace(address)
		if address == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "registered address is required")
		}
		s.registeredAddress.store(address)
		return nil
	})
}

// SyncUnincorporatedOrg is the shareable unincorporated-organization variant.
type SyncUnincorporatedOrg struct {
	id            id.EntityID
	kind          OrgKind
	establishedAt time.Time
	createdAt     time.Time
	now           func() time.Time
	gate          writeGate

	executivePartner  guarded[*id.EntityID]
	proprietor        guarded[*id.EntityID]
	members           guarded[members]
	registeredAddress guarded[string]
	scope             guarded[capacity.AuthorityScope]
	updatedAt         guarded[time.Time]
}

func NewSyncUnincorporatedOrg(params OrgParams, opts ...Option) (*SyncUnincorporatedOrg, error) {
	u, err := NewUnincorporatedOrg(params, opts...)
	if err != nil {
		return nil, err
	}
	return FromUnincorporatedOrg(u), nil
}

// FromUnincorporatedOrg converts a single-owner organization into the locked variant.
func FromUnincorporatedOrg(u *UnincorporatedOrg) *SyncUnincorporatedOrg {
	s := &SyncUnincorporatedOrg{
		id:            u.id,
		kind:          u.kind,
		establishedAt: u.establishedAt,
		createdAt:     u.createdAt,
		now:           u.now,
		gate:          newWriteGate(),
	}
	if u.executivePartner != nil {
		exec := *u.executivePartner
		s.executivePartner.v = &exec
	}
	if u.proprietor != nil {
		prop := *u.proprietor
		s.proprietor.v = &prop
	}
	s.members.v = u.members.clone()
	s.registeredAddress.v = u.registeredAddress
	s.scope.v = u.scope.Clone()
	s.updatedAt.v = u.updatedAt
	return s
}

func (s *SyncUnincorporatedOrg) entity() {}

func (s *SyncUnincorporatedOrg) ID() id.EntityID           { return s.id }
func (s *SyncUnincorporatedOrg) EntityType() id.EntityType { return id.EntityTypeUnincorporatedOrg }
func (s *SyncUnincorporatedOrg) CreatedAt() time.Time      { return s.createdAt }
func (s *SyncUnincorporatedOrg) UpdatedAt() time.Time      { return s.updatedAt.load() }
func (s *SyncUnincorporatedOrg) Kind() OrgKind             { return s.kind }
func (s *SyncUnincorporatedOrg) EstablishedAt() time.Time  { return s.establishedAt }
func (s *SyncUnincorporatedOrg) RegisteredAddress() string { return s.registeredAddress.load() }

func (s *SyncUnincorporatedOrg) Members() []Partner {
	s.members.mu.RLock()
	defer s.members.mu.RUnlock()
	return s.members.v.clone()
}

func (s *SyncUnincorporatedOrg) ExecutivePartner() (id.EntityID, bool) {
	exec := s.executivePartner.load()
	if exec == nil {
		return id.EntityID{}, false
	}
	return *exec, true
}

func (s *SyncUnincorporatedOrg) Proprietor() (id.EntityID, bool) {
	prop := s.proprietor.load()
	if prop == nil {
		return id.EntityID{}, false
	}
	return *prop, true
}

func (s *SyncUnincorporatedOrg) AuthorityScope() capacity.AuthorityScope {
	s.scope.mu.RLock()
	defer s.scope.mu.RUnlock()
	return s.scope.v.Clone()
}

func (s *SyncUnincorporatedOrg) CapacityStatus() capacity.Status {
	return checkShape(id.EntityTypeUnincorporatedOrg, s.AuthorityScope())
}

func (s *SyncUnincorporatedOrg) HasCapacity() bool { return s.AuthorityScope().Active() }

func (s *SyncUnincorporatedOrg) CanPerformActivity(activity string) bool {
	s.scope.mu.RLock()
	defer s.scope.mu.RUnlock()
	return s.scope.v.CanPerformActivity(activity)
}

func (s *SyncUnincorporatedOrg) mutate(ctx context.Context, op string, fn func() error) error {
	release, err := s.gate.acquire(ctx, "SyncUnincorporatedOrg", s.id)
	if err != nil {
		return err
	}
	defer release()
	if err := fn(); err != nil {
		return annotate(err, "SyncUnincorporatedOrg", op)
	}
	s.updatedAt.store(s.now())
	return nil
}

func (s *SyncUnincorporatedOrg) AddPartner(ctx context.Context, p Partner) error {
	return s.mutate(ctx, "AddPartner", func() error {
		return s.members.update(func(m *members) error {
			if err := m.admit(s.kind, p); err != nil {
				return err
			}
			*m = append(m.clone(), p)
			return nil
		})
	})
}

// SetExecutivePartner reads the member list and then writes the executive
// field; the write gate keeps other mutators out in between.
func (s *SyncUnincorporatedOrg) SetExecutivePartner(ctx context.Context, partnerID id.EntityID) error {
	return s.mutate(ctx, "SetExecutivePartner", func() error {
		if err := checkExecutive(s.kind, s.Members(), partnerID); err != nil {
			return err
		}
		s.executivePartner.store(&partnerID)
		return nil
	})
}

func (s *SyncUnincorporatedOrg) SetProprietor(ctx context.Context, proprietor id.EntityID) error {
	return s.mutate(ctx, "SetProprietor", func() error {
		if err := checkProprietor(s.kind, proprietor); err != nil {
			return err
		}
		s.proprietor.store(&proprietor)
		return nil
	})
}

func (s *SyncUnincorporatedOrg) AddAuthority(ctx context.Context, authority string) error {
	return s.mutate(ctx, "AddAuthority", func() error {
		return s.scope.update(func(a *capacity.AuthorityScope) error { return a.AddAuthority(authority) })
	})
}

func (s *SyncUnincorporatedOrg) AddRestriction(ctx context.Context, restriction string) error {
	return s.mutate(ctx, "AddRestriction", func() error {
		return s.scope.update(func(a *capacity.AuthorityScope) error { return a.AddRestriction(restriction) })
	})
}

func (s *SyncUnincorporatedOrg) SetAuthorityStatus(ctx context.Context, status capacity.AuthorityStatus) error {
	return s.mutate(ctx, "SetAuthorityStatus", func() error {
		return s.scope.update(func(a *capacity.AuthorityScope) error { return a.SetStatus(status) })
	})
}

func (s *SyncUnincorporatedOrg) UpdateRegisteredAddress(ctx context.Context, address string) error {
	return s.mutate(ctx, "UpdateRegisteredAddress", func() error {
		address = strings.TrimSpace(address)
		if address == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "registered address is required")
		}
		s.registeredAddress.store(address)
		return nil
	})
}
