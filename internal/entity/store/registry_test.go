package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"civitas/internal/capacity"
	"civitas/internal/entity/models"
	id "civitas/pkg/domain"
	"civitas/pkg/platform/sentinel"
	"civitas/pkg/testutil"
)

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = NewRegistry()
}

func (s *RegistrySuite) person(years int) *models.SyncNaturalPerson {
	p, err := models.NewSyncNaturalPerson(testutil.BornYearsAgo(testutil.FixedNow, years), capacity.MentalNormal,
		models.WithClock(testutil.Clock(testutil.FixedNow)))
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Put(s.ctx, p))
	return p
}

func (s *RegistrySuite) TestPutAndGet() {
	s.Run("round trip", func() {
		p := s.person(30)
		got, err := s.registry.Get(s.ctx, p.ID())
		s.Require().NoError(err)
		s.Equal(p.ID(), got.ID())
	})

	s.Run("duplicate id conflicts", func() {
		p := s.person(30)
		s.ErrorIs(s.registry.Put(s.ctx, p), sentinel.ErrConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.registry.Get(s.ctx, id.NewEntityID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistrySuite) TestPerson() {
	org, err := models.NewLegalPerson(models.LegalPersonParams{
		Kind:                models.Institution,
		RegisteredCapital:   decimal.NewFromInt(1),
		LegalRepresentative: id.NewEntityID(),
		RegisteredAddress:   "Town Hall",
	})
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Put(s.ctx, org))

	_, err = s.registry.Person(s.ctx, org.ID())
	s.ErrorIs(err, sentinel.ErrInvalidState)

	p := s.person(40)
	got, err := s.registry.Person(s.ctx, p.ID())
	s.Require().NoError(err)
	s.True(got.CanBeGuardian())
}

func (s *RegistrySuite) TestWardsOf() {
	guardian := s.person(45)
	other := s.person(50)
	wardA := s.person(6)
	wardB := s.person(9)
	wardC := s.person(12)

	attach := func(ward, g models.Person) {
		ward.AttachGuardianship(models.Guardianship{Guardian: g.ID(), Ward: ward.ID(), CreatedAt: testutil.FixedNow})
	}
	attach(wardA, guardian)
	attach(wardB, guardian)
	attach(wardC, other)

	wards, err := s.registry.WardsOf(s.ctx, guardian.ID())
	s.Require().NoError(err)
	s.Len(wards, 2)
	s.ElementsMatch([]id.EntityID{wardA.ID(), wardB.ID()}, wards)
	s.True(wards[0].Compare(wards[1]) < 0)

	none, err := s.registry.WardsOf(s.ctx, wardA.ID())
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *RegistrySuite) TestDelete() {
	p := s.person(30)
	s.Require().NoError(s.registry.Delete(s.ctx, p.ID()))
	s.Equal(0, s.registry.Len())
	s.ErrorIs(s.registry.Delete(s.ctx, p.ID()), sentinel.ErrNotFound)
}
