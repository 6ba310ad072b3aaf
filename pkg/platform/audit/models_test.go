package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEventCategory(t *testing.T) {
	binding := []AuditEvent{
		EventGuardianshipAssigned, EventGuardianshipReleased,
		EventDeclarationEffective, EventDeclarationRevoked, EventDeclarationWithdrawn,
		EventContractConcluded, EventContractTerminated, EventContractInvalidated,
	}
	for _, e := range binding {
		assert.Equal(t, CategoryCompliance, e.Category(), e)
	}

	for _, e := range []AuditEvent{EventDeclarationSubmitted, EventDeclarationDelivered, EventDeclarationMatched, "unheard_of"} {
		assert.Equal(t, CategoryOperations, e.Category(), e)
	}
}

func TestToEventSetsCategory(t *testing.T) {
	c := ComplianceEvent{Action: string(EventContractConcluded), Reason: "fraud", ActorID: "court-3"}.ToEvent()
	assert.Equal(t, CategoryCompliance, c.Category)
	assert.Equal(t, "fraud", c.Reason)
	assert.Equal(t, "court-3", c.ActorID)

	o := OpsEvent{Action: string(EventDeclarationMatched), Subject: "decl-9"}.ToEvent()
	assert.Equal(t, CategoryOperations, o.Category)
	assert.Equal(t, "decl-9", o.Subject)
	assert.Empty(t, o.Decision)
}
