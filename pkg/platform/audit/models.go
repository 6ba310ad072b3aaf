//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks

// Package audit defines the audit trail of civil-law acts. Acts that change
// legal relations (guardianships, effective or revoked declarations,
// contracts) are compliance events and must be stored before the act takes
// effect. Delivery and match bookkeeping are operations events and may be
// sampled or lost.
package audit

import (
	"context"
	"time"

	id "civitas/pkg/domain"
)

type EventCategory string

const (
	CategoryCompliance EventCategory = "compliance"
	CategoryOperations EventCategory = "operations"
)

// Event is the stored record. EntityID is the entity the record is filed
// under: the ward, the declarant, one contract party. Subject names the
// other side of the act (guardian, declaration or contract id).
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	EntityID  id.EntityID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	ActorID   string
}

type AuditEvent string

const (
	EventGuardianshipAssigned AuditEvent = "guardianship_assigned"
	EventGuardianshipReleased AuditEvent = "guardianship_released"

	EventDeclarationSubmitted AuditEvent = "declaration_submitted"
	EventDeclarationDelivered AuditEvent = "declaration_delivered"
	EventDeclarationEffective AuditEvent = "declaration_effective"
	EventDeclarationRevoked   AuditEvent = "declaration_revoked"
	EventDeclarationWithdrawn AuditEvent = "declaration_withdrawn"
	EventDeclarationMatched   AuditEvent = "declaration_matched"

	EventContractConcluded   AuditEvent = "contract_concluded"
	EventContractTerminated  AuditEvent = "contract_terminated"
	EventContractInvalidated AuditEvent = "contract_invalidated"
)

var complianceEvents = map[AuditEvent]struct{}{
	EventGuardianshipAssigned: {},
	EventGuardianshipReleased: {},
	EventDeclarationEffective: {},
	EventDeclarationRevoked:   {},
	EventDeclarationWithdrawn: {},
	EventContractConcluded:    {},
	EventContractTerminated:   {},
	EventContractInvalidated:  {},
}

// Category is CategoryOperations for anything not known to bind the parties.
func (e AuditEvent) Category() EventCategory {
	if _, ok := complianceEvents[e]; ok {
		return CategoryCompliance
	}
	return CategoryOperations
}

type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityID id.EntityID) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
}

// ComplianceEmitter is the fail-closed port. An error means the caller's
// operation failed.
type ComplianceEmitter interface {
	Emit(ctx context.Context, event ComplianceEvent) error
}

// OpsTracker is the best-effort port.
type OpsTracker interface {
	Track(ctx context.Context, event OpsEvent)
}

// ComplianceEvent records an act with legal effect. EntityID and Action are
// required; Timestamp, RequestID and ActorID are filled in when empty.
type ComplianceEvent struct {
	Timestamp time.Time
	EntityID  id.EntityID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	ActorID   string
}

func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		EntityID:  e.EntityID,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// OpsEvent is fire-and-forget bookkeeping.
type OpsEvent struct {
	Timestamp time.Time
	EntityID  id.EntityID
	Subject   string
	Action    string
	RequestID string
}

func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		EntityID:  e.EntityID,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}
