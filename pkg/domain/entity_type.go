package domain

import dErrors "civitas/pkg/domain-errors"

// EntityType is the kind of civil-law actor.
// Invariant: one of the three supported kinds.
type EntityType string

const (
	EntityTypeNaturalPerson     EntityType = "natural_person"
	EntityTypeLegalPerson       EntityType = "legal_person"
	EntityTypeUnincorporatedOrg EntityType = "unincorporated_org"
)

var validEntityTypes = map[EntityType]bool{
	EntityTypeNaturalPerson:     true,
	EntityTypeLegalPerson:       true,
	EntityTypeUnincorporatedOrg: true,
}

// ParseEntityType constructs an EntityType from external input.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity type cannot be empty")
	}
	t := EntityType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity type")
	}
	return t, nil
}

// IsValid checks if the entity type is one of the supported kinds.
func (t EntityType) IsValid() bool {
	return validEntityTypes[t]
}

func (t EntityType) String() string {
	return string(t)
}
