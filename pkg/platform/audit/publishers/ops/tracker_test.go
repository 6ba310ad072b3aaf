package ops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "civitas/pkg/domain"
	audit "civitas/pkg/platform/audit"
	"civitas/pkg/platform/audit/mocks"
	"civitas/pkg/platform/audit/store/memory"
	"civitas/pkg/requestcontext"
)

func TestTracker_Track(t *testing.T) {
	ctx := context.Background()
	entity := id.EntityID(uuid.New())

	t.Run("records kept events", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		m := NewMetrics(prometheus.NewRegistry(), "test")
		tr := New(store, WithMetrics(m))

		tr.Track(requestcontext.WithRequestID(ctx, "req-ops"), audit.OpsEvent{EntityID: entity, Action: string(audit.EventDeclarationSubmitted)})

		events, err := store.ListByEntity(ctx, entity)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryOperations, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
		assert.Equal(t, "req-ops", events[0].RequestID)
		assert.Equal(t, 1.0, promtest.ToFloat64(m.Events.WithLabelValues(string(audit.EventDeclarationSubmitted), ResultStored)))
	})

	t.Run("sampled out events never reach the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		m := NewMetrics(prometheus.NewRegistry(), "test")
		sampler := NewSampler(1)
		sampler.SetRate(audit.EventDeclarationMatched, 0)
		tr := New(store, WithSampler(sampler), WithMetrics(m))

		tr.Track(ctx, audit.OpsEvent{EntityID: entity, Action: string(audit.EventDeclarationMatched)})
		assert.Equal(t, 1.0, promtest.ToFloat64(m.Events.WithLabelValues(string(audit.EventDeclarationMatched), ResultSampledOut)))
	})

	t.Run("breaker opens after repeated failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("unavailable")).Times(2)
		m := NewMetrics(prometheus.NewRegistry(), "test")
		tr := New(store, WithCircuitBreaker(NewCircuitBreaker(2, time.Hour)), WithMetrics(m))

		for range 4 {
			tr.Track(ctx, audit.OpsEvent{EntityID: entity, Action: string(audit.EventDeclarationDelivered)})
		}
		delivered := string(audit.EventDeclarationDelivered)
		assert.Equal(t, 2.0, promtest.ToFloat64(m.Events.WithLabelValues(delivered, ResultWriteFailed)))
		assert.Equal(t, 2.0, promtest.ToFloat64(m.Events.WithLabelValues(delivered, ResultBreakerDropped)))
		assert.Equal(t, 1.0, promtest.ToFloat64(m.BreakerOpen))
	})

	t.Run("nil tracker is a no-op", func(t *testing.T) {
		var tr *Tracker
		tr.Track(ctx, audit.OpsEvent{Action: "x"})
	})
}

func TestCircuitBreaker_ProbesAfterCooldown(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.Failure())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow(), "first write after cooldown is the probe")
	assert.False(t, cb.Allow(), "no second write while the probe is in flight")

	assert.True(t, cb.Failure(), "failed probe reopens")
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.Success()
	assert.False(t, cb.Open())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	assert.False(t, cb.Failure())
	cb.Success()
	assert.False(t, cb.Failure())
	assert.True(t, cb.Failure())
}

func TestSampler(t *testing.T) {
	t.Run("rates are clamped", func(t *testing.T) {
		s := NewSampler(7)
		assert.True(t, s.Keep(audit.EventDeclarationSubmitted))
		s.SetRate(audit.EventDeclarationMatched, -1)
		assert.False(t, s.Keep(audit.EventDeclarationMatched))
	})

	t.Run("partial rates compare against the draw", func(t *testing.T) {
		draw := 0.3
		s := NewSampler(0.5,
			WithDraw(func() float64 { return draw }),
			WithEventRate(audit.EventDeclarationMatched, 0.1),
		)
		assert.True(t, s.Keep(audit.EventDeclarationDelivered))
		assert.False(t, s.Keep(audit.EventDeclarationMatched))

		draw = 0.05
		assert.True(t, s.Keep(audit.EventDeclarationMatched))
	})
}
