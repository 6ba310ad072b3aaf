package models

import (
	"strings"

	entity "civitas/internal/entity/models"
	intent "civitas/internal/intent/models"
	dErrors "civitas/pkg/domain-errors"
)

// AtypicalContract is an agreement the civil code does not name. It carries
// a label and only the base validation.
type AtypicalContract struct {
	*Contract
	name string
}

var _ Agreement = (*AtypicalContract)(nil)

func NewAtypical(name string, parties []entity.Entity, declarations []*intent.Declaration, opts ...Option) (*AtypicalContract, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "atypical contract name is required").In("AtypicalContract", "New")
	}
	return &AtypicalContract{Contract: New(parties, declarations, opts...), name: name}, nil
}

func (a *AtypicalContract) Name() string { return a.name }
