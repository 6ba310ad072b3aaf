package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"civitas/internal/capacity"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/testutil"
)

func TestFromNaturalPersonPreservesState(t *testing.T) {
	clock := testutil.Clock(testutil.FixedNow)
	p, err := NewNaturalPerson(testutil.BornYearsAgo(testutil.FixedNow, 12), capacity.MentalNormal, WithClock(clock))
	require.NoError(t, err)
	guardian := id.NewEntityID()
	p.AttachGuardianship(Guardianship{Guardian: guardian, Ward: p.ID(), CreatedAt: testutil.FixedNow})

	s := FromNaturalPerson(p)
	assert.Equal(t, p.ID(), s.ID())
	assert.Equal(t, p.BirthDate(), s.BirthDate())
	assert.Equal(t, capacity.CapacityLimited, s.CapacityStatus())
	g, ok := s.Guardianship()
	require.True(t, ok)
	assert.Equal(t, guardian, g.Guardian)
}

func TestSyncNaturalPerson_LockFailure(t *testing.T) {
	s, err := NewSyncNaturalPerson(testutil.BornYearsAgo(time.Now(), 30), capacity.MentalNormal)
	require.NoError(t, err)

	release, err := s.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.UpdateMentalStatus(ctx, capacity.MentalSeverelyImpaired)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeLockFailure))
	assert.Equal(t, dErrors.CategoryConcurrency, dErrors.CategoryOf(err))
	assert.Equal(t, capacity.MentalNormal, s.MentalStatus(), "failed mutation must not change state")

	release()
	release() // idempotent
	require.NoError(t, s.UpdateMentalStatus(context.Background(), capacity.MentalSeverelyImpaired))
	assert.Equal(t, capacity.CapacityNone, s.NaturalCapacity())
}

func TestSyncNaturalPerson_ConcurrentReadsAndWrites(t *testing.T) {
	s, err := NewSyncNaturalPerson(testutil.BornYearsAgo(time.Now(), 30), capacity.MentalNormal)
	require.NoError(t, err)

	var g errgroup.Group
	for i := range 50 {
		g.Go(func() error {
			if i%2 == 0 {
				status := capacity.MentalNormal
				if i%4 == 0 {
					status = capacity.MentalPartiallyImpaired
				}
				return s.UpdateMentalStatus(context.Background(), status)
			}
			_ = s.CapacityStatus()
			_ = s.CanBeGuardian()
			_, _ = s.Guardianship()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Contains(t, []capacity.NaturalCapacity{capacity.CapacityFull, capacity.CapacityLimited}, s.NaturalCapacity())
}

func TestSyncLegalPerson(t *testing.T) {
	ctx := context.Background()
	l, err := NewSyncLegalPerson(LegalPersonParams{
		Kind:                Foundation,
		RegisteredCapital:   decimal.NewFromInt(2000000),
		LegalRepresentative: id.NewEntityID(),
		RegisteredAddress:   "9 Elm Row",
		Activities:          []string{"grants"},
	})
	require.NoError(t, err)

	assert.True(t, l.HasCapacity())
	require.NoError(t, l.AddActivity(ctx, "scholarships"))
	assert.True(t, l.CanPerformActivity("scholarships"))

	err = l.UpdateRegisteredCapital(ctx, decimal.Zero)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyncLegalPerson.UpdateRegisteredCapital")
	assert.True(t, l.RegisteredCapital().Equal(decimal.NewFromInt(2000000)))

	require.NoError(t, l.SetBusinessStatus(ctx, capacity.BusinessSuspended))
	assert.False(t, l.HasCapacity())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = l.ChangeLegalRepresentative(cancelled, id.NewEntityID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeLockFailure))
}

func TestSyncUnincorporatedOrg(t *testing.T) {
	ctx := context.Background()
	u, err := NewUnincorporatedOrg(OrgParams{Kind: PartnershipGeneral, RegisteredAddress: "4 Dock St"})
	require.NoError(t, err)
	first := Partner{
		ID: id.NewEntityID(), Type: GeneralPartner,
		Contribution: decimal.NewFromInt(10), ProfitShare: decimal.RequireFromString("0.5"),
		Liability: LiabilityUnlimited,
	}
	require.NoError(t, u.AddPartner(first))
	s := FromUnincorporatedOrg(u)

	var g errgroup.Group
	for range 10 {
		g.Go(func() error {
			return s.AddPartner(ctx, Partner{
				ID: id.NewEntityID(), Type: LimitedPartner,
				Contribution: decimal.NewFromInt(1), ProfitShare: decimal.RequireFromString("0.1"),
				Liability: LiabilityLimited,
			})
		})
	}
	err = g.Wait()
	require.Error(t, err, "only five more tenths fit")
	assert.Len(t, s.Members(), 6)

	require.NoError(t, s.SetExecutivePartner(ctx, first.ID))
	exec, ok := s.ExecutivePartner()
	assert.True(t, ok)
	assert.Equal(t, first.ID, exec)

	require.NoError(t, s.AddAuthority(ctx, "retail"))
	assert.True(t, s.CanPerformActivity("retail"))
	require.NoError(t, s.SetAuthorityStatus(ctx, capacity.AuthoritySuspended))
	assert.False(t, s.HasCapacity())
}
