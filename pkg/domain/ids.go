// Package domain holds the shared kernel: typed identifiers and the entity
// kind enumeration used across entity, intent and contract packages.
package domain

import (
	"bytes"
	"strings"

	"github.com/google/uuid"

	dErrors "civitas/pkg/domain-errors"
)

// Typed IDs keep entities, declarations, contracts and subject matters from
// being mixed up at compile time. All are UUIDs underneath.
type (
	EntityID        uuid.UUID
	DeclarationID   uuid.UUID
	ContractID      uuid.UUID
	SubjectMatterID uuid.UUID
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is too long", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", kind)
	}
	return u, nil
}

// NewEntityID returns a fresh random EntityID.
func NewEntityID() EntityID { return EntityID(uuid.New()) }

// ParseEntityID validates external input as an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID("entity_id", s)
	return EntityID(u), err
}

func (id EntityID) String() string { return uuid.UUID(id).String() }
func (id EntityID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Compare orders entity ids by their bytes. It is the stable total order used
// wherever two entities must be locked together.
func (id EntityID) Compare(other EntityID) int {
	return bytes.Compare(id[:], other[:])
}

// NewDeclarationID returns a fresh random DeclarationID.
func NewDeclarationID() DeclarationID { return DeclarationID(uuid.New()) }

// ParseDeclarationID validates external input as a DeclarationID.
func ParseDeclarationID(s string) (DeclarationID, error) {
	u, err := parseUUID("declaration_id", s)
	return DeclarationID(u), err
}

func (id DeclarationID) String() string { return uuid.UUID(id).String() }
func (id DeclarationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewContractID returns a fresh random ContractID.
func NewContractID() ContractID { return ContractID(uuid.New()) }

// ParseContractID validates external input as a ContractID.
func ParseContractID(s string) (ContractID, error) {
	u, err := parseUUID("contract_id", s)
	return ContractID(u), err
}

func (id ContractID) String() string { return uuid.UUID(id).String() }
func (id ContractID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewSubjectMatterID returns a fresh random SubjectMatterID.
func NewSubjectMatterID() SubjectMatterID { return SubjectMatterID(uuid.New()) }

// ParseSubjectMatterID validates external input as a SubjectMatterID.
func ParseSubjectMatterID(s string) (SubjectMatterID, error) {
	u, err := parseUUID("subject_matter_id", s)
	return SubjectMatterID(u), err
}

func (id SubjectMatterID) String() string { return uuid.UUID(id).String() }
func (id SubjectMatterID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
