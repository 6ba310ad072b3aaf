package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"civitas/internal/capacity"
	"civitas/internal/entity/models"
	"civitas/internal/entity/store"
	"civitas/internal/guardianship/metrics"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	auditmocks "civitas/pkg/platform/audit/mocks"
	"civitas/pkg/platform/audit/publishers/compliance"
	auditmemory "civitas/pkg/platform/audit/store/memory"
	"civitas/pkg/platform/sentinel"
	"civitas/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	registry *store.Registry
	events   *auditmemory.InMemoryStore
	metrics  *metrics.Metrics
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = testutil.Context("req-guardianship")
	s.registry = store.NewRegistry()
	s.events = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry(), "test")

	svc, err := New(s.registry,
		WithAuditPublisher(compliance.New(s.events)),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) person(years int, mental capacity.MentalStatus) *models.NaturalPerson {
	p, err := models.NewNaturalPerson(testutil.BornYearsAgo(testutil.FixedNow, years), mental,
		models.WithClock(testutil.Clock(testutil.FixedNow)))
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Put(s.ctx, p))
	return p
}

func (s *ServiceSuite) syncPerson(years int) *models.SyncNaturalPerson {
	p, err := models.NewSyncNaturalPerson(testutil.BornYearsAgo(testutil.FixedNow, years), capacity.MentalNormal,
		models.WithClock(testutil.Clock(testutil.FixedNow)))
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Put(s.ctx, p))
	return p
}

func (s *ServiceSuite) outcomes(op, outcome string) float64 {
	return promtest.ToFloat64(s.metrics.Outcomes.WithLabelValues(op, outcome))
}

func (s *ServiceSuite) TestNewRequiresWardIndex() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestAssign() {
	s.Run("adult of normal mental status guards a child", func() {
		ward := s.person(10, capacity.MentalNormal)
		guardian := s.person(20, capacity.MentalNormal)
		scope := models.NewGuardianshipScope("education", "medical")

		g, err := s.service.Assign(s.ctx, ward, guardian, scope)
		s.Require().NoError(err)

		s.Equal(guardian.ID(), g.Guardian)
		s.Equal(ward.ID(), g.Ward)
		s.Equal(testutil.FixedNow, g.CreatedAt)
		s.Nil(g.ValidUntil)
		s.True(g.Scope.Permits("medical"))

		held, ok := ward.Guardianship()
		s.Require().True(ok)
		s.Equal(guardian.ID(), held.Guardian)
		s.True(guardian.IsGuardian())
		s.False(ward.IsGuardian())

		events, err := s.events.ListByEntity(s.ctx, ward.ID())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventGuardianshipAssigned), events[0].Action)
		s.Equal(guardian.ID().String(), events[0].Subject)
		s.Equal("req-guardianship", events[0].RequestID)
		s.Equal(audit.CategoryCompliance, events[0].Category)
		s.Equal(float64(1), s.outcomes("assign", metrics.OutcomeAssigned))
	})

	s.Run("validity window is recorded", func() {
		ward := s.person(5, capacity.MentalNormal)
		guardian := s.person(40, capacity.MentalNormal)
		until := testutil.FixedNow.AddDate(1, 0, 0)

		g, err := s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope(), WithValidUntil(until))
		s.Require().NoError(err)
		s.Require().NotNil(g.ValidUntil)
		s.True(g.IsActive(testutil.FixedNow))
		s.False(g.IsActive(until))
	})

	s.Run("validity window ending before the start is malformed", func() {
		ward := s.person(5, capacity.MentalNormal)
		guardian := s.person(40, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope(),
			WithValidUntil(testutil.FixedNow.Add(-time.Hour)))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeRelationMalformed))
		_, ok := ward.Guardianship()
		s.False(ok)
		s.False(guardian.IsGuardian())
	})

	s.Run("nil parties are malformed", func() {
		var missing *models.NaturalPerson
		guardian := s.person(40, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, missing, guardian, models.NewGuardianshipScope())
		s.True(dErrors.HasCode(err, dErrors.CodeRelationMalformed))
		s.False(guardian.IsGuardian())

		err = s.service.Release(s.ctx, missing, guardian)
		s.True(dErrors.HasCode(err, dErrors.CodeRelationMalformed))
	})

	s.Run("a person cannot guard themselves", func() {
		p := s.person(30, capacity.MentalNormal)
		_, err := s.service.Assign(s.ctx, p, p, models.NewGuardianshipScope())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeRelationMalformed))
		s.False(p.IsGuardian())
	})

	s.Run("an existing relation is replaced", func() {
		ward := s.person(12, capacity.MentalNormal)
		first := s.person(35, capacity.MentalNormal)
		second := s.person(50, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, ward, first, models.NewGuardianshipScope())
		s.Require().NoError(err)
		_, err = s.service.Assign(s.ctx, ward, second, models.NewGuardianshipScope())
		s.Require().NoError(err)

		held, ok := ward.Guardianship()
		s.Require().True(ok)
		s.Equal(second.ID(), held.Guardian)
		s.True(second.IsGuardian())
		s.False(first.IsGuardian(), "displaced guardian guards nobody")
		s.Equal(float64(1), s.outcomes("assign", metrics.OutcomeReplaced))

		err = s.service.Release(s.ctx, ward, first)
		s.True(dErrors.HasCode(err, dErrors.CodeRelationMalformed))
	})

	s.Run("a displaced guardian with other wards keeps the marker", func() {
		ward := s.person(9, capacity.MentalNormal)
		sibling := s.person(7, capacity.MentalNormal)
		first := s.person(38, capacity.MentalNormal)
		second := s.person(44, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, ward, first, models.NewGuardianshipScope())
		s.Require().NoError(err)
		_, err = s.service.Assign(s.ctx, sibling, first, models.NewGuardianshipScope())
		s.Require().NoError(err)
		_, err = s.service.Assign(s.ctx, ward, second, models.NewGuardianshipScope())
		s.Require().NoError(err)

		s.True(first.IsGuardian())
		wards, err := s.registry.WardsOf(s.ctx, first.ID())
		s.Require().NoError(err)
		s.Equal([]id.EntityID{sibling.ID()}, wards)
	})

	s.Run("reassigning the same guardian keeps the marker", func() {
		ward := s.person(6, capacity.MentalNormal)
		guardian := s.person(33, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope("education"))
		s.Require().NoError(err)
		_, err = s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope("medical"))
		s.Require().NoError(err)
		s.True(guardian.IsGuardian())
	})
}

func (s *ServiceSuite) TestAssignRejectsIneligibleGuardian() {
	cases := []struct {
		name   string
		years  int
		mental capacity.MentalStatus
	}{
		{"ten year old", 10, capacity.MentalNormal},
		{"seventeen year old", 17, capacity.MentalNormal},
		{"partially impaired adult", 30, capacity.MentalPartiallyImpaired},
		{"severely impaired adult", 30, capacity.MentalSeverelyImpaired},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			ward := s.person(6, capacity.MentalNormal)
			guardian := s.person(tc.years, tc.mental)
			before := ward.UpdatedAt()

			_, err := s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope("all"))
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeCapacityLacking))
			s.Equal(dErrors.CategoryEntity, dErrors.CategoryOf(err))

			_, ok := ward.Guardianship()
			s.False(ok, "ward must be untouched")
			s.False(guardian.IsGuardian(), "guardian must be untouched")
			s.Equal(before, ward.UpdatedAt())

			events, err := s.events.ListByEntity(s.ctx, ward.ID())
			s.Require().NoError(err)
			s.Empty(events)
		})
	}
	s.Equal(float64(len(cases)), s.outcomes("assign", metrics.OutcomeIneligible))
}

func (s *ServiceSuite) TestAssignRollsBackWhenAuditFails() {
	ctrl := gomock.NewController(s.T())
	emitter := auditmocks.NewMockComplianceEmitter(ctrl)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	svc, err := New(s.registry, WithAuditPublisher(emitter), WithMetrics(s.metrics))
	s.Require().NoError(err)

	ward := s.person(9, capacity.MentalNormal)
	guardian := s.person(45, capacity.MentalNormal)

	_, err = svc.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	_, ok := ward.Guardianship()
	s.False(ok)
	s.False(guardian.IsGuardian())
	s.Equal(float64(1), s.outcomes("assign", metrics.OutcomeAuditFailure))
}

func (s *ServiceSuite) TestAssignSurfacesLockFailure() {
	ward := s.syncPerson(8)
	guardian := s.syncPerson(30)

	held, err := guardian.Acquire(context.Background())
	s.Require().NoError(err)
	defer held()

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()

	_, err = s.service.Assign(ctx, ward, guardian, models.NewGuardianshipScope())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLockFailure))
	s.Equal(dErrors.CategoryConcurrency, dErrors.CategoryOf(err))
	s.ErrorIs(err, sentinel.ErrLockUnavailable)
	s.ErrorIs(err, context.DeadlineExceeded)
	_, ok := ward.Guardianship()
	s.False(ok)
	s.Equal(float64(1), s.outcomes("assign", metrics.OutcomeLockFailure))

	// the ward's gate must not be left held
	release, err := ward.Acquire(context.Background())
	s.Require().NoError(err)
	release()
}

func (s *ServiceSuite) TestLockTimeoutAppliesWithoutDeadline() {
	svc, err := New(s.registry, WithLockTimeout(20*time.Millisecond))
	s.Require().NoError(err)

	ward := s.syncPerson(8)
	guardian := s.syncPerson(30)
	held, err := ward.Acquire(context.Background())
	s.Require().NoError(err)
	defer held()

	_, err = svc.Assign(context.Background(), ward, guardian, models.NewGuardianshipScope())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLockFailure))
}

func (s *ServiceSuite) TestRelease() {
	s.Run("clears the marker once the last ward is released", func() {
		guardian := s.person(40, capacity.MentalNormal)
		first := s.person(4, capacity.MentalNormal)
		second := s.person(7, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, first, guardian, models.NewGuardianshipScope())
		s.Require().NoError(err)
		_, err = s.service.Assign(s.ctx, second, guardian, models.NewGuardianshipScope())
		s.Require().NoError(err)

		s.Require().NoError(s.service.Release(s.ctx, first, guardian))
		_, ok := first.Guardianship()
		s.False(ok)
		s.True(guardian.IsGuardian(), "still guards the second ward")

		s.Require().NoError(s.service.Release(s.ctx, second, guardian))
		s.False(guardian.IsGuardian())

		events, err := s.events.ListByEntity(s.ctx, second.ID())
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(string(audit.EventGuardianshipReleased), events[1].Action)
	})

	s.Run("rejects a guardian the ward is not under", func() {
		ward := s.person(4, capacity.MentalNormal)
		guardian := s.person(40, capacity.MentalNormal)
		stranger := s.person(41, capacity.MentalNormal)

		_, err := s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope())
		s.Require().NoError(err)

		err = s.service.Release(s.ctx, ward, stranger)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeRelationMalformed))
		held, ok := ward.Guardianship()
		s.Require().True(ok)
		s.Equal(guardian.ID(), held.Guardian)
	})
}

func (s *ServiceSuite) TestReleaseRollsBackWhenAuditFails() {
	ward := s.person(4, capacity.MentalNormal)
	guardian := s.person(40, capacity.MentalNormal)
	_, err := s.service.Assign(s.ctx, ward, guardian, models.NewGuardianshipScope())
	s.Require().NoError(err)

	ctrl := gomock.NewController(s.T())
	emitter := auditmocks.NewMockComplianceEmitter(ctrl)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("unavailable"))
	svc, err := New(s.registry, WithAuditPublisher(emitter))
	s.Require().NoError(err)

	err = svc.Release(s.ctx, ward, guardian)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	_, ok := ward.Guardianship()
	s.True(ok)
	s.True(guardian.IsGuardian())
}

// Assignments race over a small pool with randomly swapped argument order.
// Every attempt must finish; a lock-order bug shows up as the deadline below
// expiring.
func (s *ServiceSuite) TestConcurrentReversedAssignmentsNeverDeadlock() {
	const (
		poolSize = 6
		attempts = 400
	)
	pool := make([]*models.SyncNaturalPerson, poolSize)
	for i := range pool {
		pool[i] = s.syncPerson(25 + i)
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var g errgroup.Group
		for range attempts {
			a := rand.IntN(poolSize)
			b := (a + 1 + rand.IntN(poolSize-1)) % poolSize
			ward, guardian := pool[a], pool[b]
			if rand.IntN(2) == 0 {
				ward, guardian = guardian, ward
			}
			g.Go(func() error {
				_, err := s.service.Assign(ctx, ward, guardian, models.NewGuardianshipScope("all"))
				return err
			})
		}
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(15 * time.Second):
		s.FailNow("concurrent assignments did not complete")
	}

	for _, p := range pool {
		if g, ok := p.Guardianship(); ok {
			s.NotEqual(p.ID(), g.Guardian)
		}
	}
}
