package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	audit "civitas/pkg/platform/audit"
	"civitas/pkg/platform/audit/mocks"
	"civitas/pkg/platform/audit/store/memory"
	"civitas/pkg/requestcontext"
)

type PublisherSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.InMemoryStore
	metrics *Metrics
	now     time.Time
	pub     *Publisher
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = requestcontext.WithActorID(requestcontext.WithRequestID(context.Background(), "req-42"), "registrar-7")
	s.store = memory.NewInMemoryStore()
	s.metrics = NewMetrics(prometheus.NewRegistry(), "test")
	s.now = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	s.pub = New(s.store, WithMetrics(s.metrics), WithClock(func() time.Time { return s.now }))
}

func (s *PublisherSuite) TestEmitStampsTimeAndCorrelation() {
	ward := id.EntityID(uuid.New())

	err := s.pub.Emit(s.ctx, audit.ComplianceEvent{
		EntityID: ward,
		Subject:  "guardian-1",
		Action:   string(audit.EventGuardianshipAssigned),
	})
	s.Require().NoError(err)

	events, err := s.store.ListByEntity(s.ctx, ward)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal(s.now, events[0].Timestamp)
	s.Equal("guardian-1", events[0].Subject)
	s.Equal("req-42", events[0].RequestID)
	s.Equal("registrar-7", events[0].ActorID)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.EventsEmitted.WithLabelValues(string(audit.EventGuardianshipAssigned))))
}

func (s *PublisherSuite) TestEmitKeepsExplicitCorrelation() {
	ward := id.EntityID(uuid.New())
	s.Require().NoError(s.pub.Emit(s.ctx, audit.ComplianceEvent{
		EntityID:  ward,
		Action:    string(audit.EventGuardianshipReleased),
		RequestID: "req-explicit",
	}))

	events, err := s.store.ListByEntity(s.ctx, ward)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("req-explicit", events[0].RequestID)
}

func (s *PublisherSuite) TestEmitRejectsInvalidEvents() {
	ward := id.EntityID(uuid.New())
	tests := []struct {
		name  string
		event audit.ComplianceEvent
	}{
		{"missing entity", audit.ComplianceEvent{Action: string(audit.EventContractConcluded)}},
		{"missing action", audit.ComplianceEvent{EntityID: ward}},
		{"operational action", audit.ComplianceEvent{EntityID: ward, Action: string(audit.EventDeclarationMatched)}},
		{"unknown action", audit.ComplianceEvent{EntityID: ward, Action: "declaration_lost"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.pub.Emit(s.ctx, tt.event)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)
		})
	}

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *PublisherSuite) TestEmitFailsClosed() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	storeErr := errors.New("disk full")
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(storeErr)

	pub := New(store, WithMetrics(s.metrics))
	err := pub.Emit(s.ctx, audit.ComplianceEvent{
		EntityID: id.EntityID(uuid.New()),
		Action:   string(audit.EventContractConcluded),
	})
	s.ErrorIs(err, storeErr)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.PersistFailures))
}

func (s *PublisherSuite) TestNilMetricsAreSafe() {
	pub := New(s.store)
	s.NoError(pub.Emit(context.Background(), audit.ComplianceEvent{
		EntityID: id.EntityID(uuid.New()),
		Action:   string(audit.EventDeclarationRevoked),
	}))
}
