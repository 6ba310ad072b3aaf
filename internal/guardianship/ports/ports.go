package ports

import (
	"context"

	"civitas/internal/entity/models"
	id "civitas/pkg/domain"
	"civitas/pkg/platform/audit"
)

// AuditPublisher is an alias to the shared fail-closed interface.
type AuditPublisher = audit.ComplianceEmitter

// WardIndex answers which wards currently name a guardian. The guardian
// record only carries a marker, so releasing or replacing a relation asks
// the index whether the marker can be cleared.
type WardIndex interface {
	WardsOf(ctx context.Context, guardianID id.EntityID) ([]id.EntityID, error)
	Person(ctx context.Context, entityID id.EntityID) (models.Person, error)
}
