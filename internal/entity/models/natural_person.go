package models

import (
	"context"
	"time"

	"civitas/internal/capacity"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

// Person is the natural-person capability shared by NaturalPerson and
// SyncNaturalPerson. Guardianship assignment works against it.
//
// AttachGuardianship, DetachGuardianship and MarkAsGuardian must be called
// while holding the release func returned by Acquire.
type Person interface {
	Entity
	BirthDate() time.Time
	MentalStatus() capacity.MentalStatus
	Age() int
	NaturalCapacity() capacity.NaturalCapacity
	CanBeGuardian() bool
	Guardianship() (Guardianship, bool)
	IsGuardian() bool

	Acquire(ctx context.Context) (release func(), err error)
	AttachGuardianship(g Guardianship)
	DetachGuardianship()
	MarkAsGuardian(isGuardian bool)
	Now() time.Time
}

// NaturalPerson is the single-owner variant. It performs no locking and must
// not be shared between goroutines that mutate it.
type NaturalPerson struct {
	id           id.EntityID
	birthDate    time.Time
	mentalStatus capacity.MentalStatus
	guardianship *Guardianship
	isGuardian   bool
	createdAt    time.Time
	updatedAt    time.Time
	now          func() time.Time
}

func NewNaturalPerson(birthDate time.Time, mental capacity.MentalStatus, opts ...Option) (*NaturalPerson, error) {
	if err := validateNaturalPerson(birthDate, mental); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	now := o.now()
	return &NaturalPerson{
		id:           o.id,
		birthDate:    birthDate.UTC(),
		mentalStatus: mental,
		createdAt:    now,
		updatedAt:    now,
		now:          o.now,
	}, nil
}

func validateNaturalPerson(birthDate time.Time, mental capacity.MentalStatus) error {
	if birthDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "birth date is required").In("NaturalPerson", "New")
	}
	if !mental.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid mental status %q", mental).In("NaturalPerson", "New")
	}
	return nil
}

func (p *NaturalPerson) entity() {}

func (p *NaturalPerson) ID() id.EntityID           { return p.id }
func (p *NaturalPerson) EntityType() id.EntityType { return id.EntityTypeNaturalPerson }
func (p *NaturalPerson) CreatedAt() time.Time      { return p.createdAt }
func (p *NaturalPerson) UpdatedAt() time.Time      { return p.updatedAt }
func (p *NaturalPerson) BirthDate() time.Time      { return p.birthDate }
func (p *NaturalPerson) Now() time.Time            { return p.now() }

func (p *NaturalPerson) MentalStatus() capacity.MentalStatus { return p.mentalStatus }

func (p *NaturalPerson) Age() int {
	return capacity.Age(p.birthDate, p.now())
}

// NaturalCapacity is derived from birth date and mental status at the
// current clock reading; it is never stored.
func (p *NaturalPerson) NaturalCapacity() capacity.NaturalCapacity {
	return capacity.Evaluate(p.birthDate, p.mentalStatus, p.now())
}

func (p *NaturalPerson) CapacityStatus() capacity.Status {
	return checkShape(id.EntityTypeNaturalPerson, p.NaturalCapacity())
}

func (p *NaturalPerson) HasCapacity() bool {
	return p.NaturalCapacity() == capacity.CapacityFull
}

func (p *NaturalPerson) CanBeGuardian() bool {
	now := p.now()
	return capacity.CanActAsGuardian(
		capacity.Evaluate(p.birthDate, p.mentalStatus, now),
		p.mentalStatus,
		capacity.Age(p.birthDate, now),
	)
}

// UpdateMentalStatus replaces the mental status; capacity follows immediately.
func (p *NaturalPerson) UpdateMentalStatus(mental capacity.MentalStatus) error {
	if !mental.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid mental status %q", mental).
			In("NaturalPerson", "UpdateMentalStatus")
	}
	p.mentalStatus = mental
	p.updatedAt = p.now()
	return nil
}

func (p *NaturalPerson) Guardianship() (Guardianship, bool) {
	if p.guardianship == nil {
		return Guardianship{}, false
	}
	return p.guardianship.clone(), true
}

func (p *NaturalPerson) IsGuardian() bool { return p.isGuardian }

func (p *NaturalPerson) Acquire(ctx context.Context) (func(), error) {
	return noopAcquire(ctx, "NaturalPerson", p.id)
}

func (p *NaturalPerson) AttachGuardianship(g Guardianship) {
	g = g.clone()
	p.guardianship = &g
	p.updatedAt = p.now()
}

func (p *NaturalPerson) DetachGuardianship() {
	p.guardianship = nil
	p.updatedAt = p.now()
}

func (p *NaturalPerson) MarkAsGuardian(isGuardian bool) {
	p.isGuardian = isGuardian
	p.updatedAt = p.now()
}
