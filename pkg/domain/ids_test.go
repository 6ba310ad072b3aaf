package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civitas/pkg/domain-errors"
)

// parsers adapts every typed parser to one signature so a single table can
// exercise them all.
var parsers = map[string]func(string) (uuid.UUID, error){
	"entity": func(s string) (uuid.UUID, error) {
		v, err := ParseEntityID(s)
		return uuid.UUID(v), err
	},
	"declaration": func(s string) (uuid.UUID, error) {
		v, err := ParseDeclarationID(s)
		return uuid.UUID(v), err
	},
	"contract": func(s string) (uuid.UUID, error) {
		v, err := ParseContractID(s)
		return uuid.UUID(v), err
	},
	"subject matter": func(s string) (uuid.UUID, error) {
		v, err := ParseSubjectMatterID(s)
		return uuid.UUID(v), err
	},
}

func TestParseIDs(t *testing.T) {
	registered := uuid.MustParse("6f1c2a9e-3b7d-4e21-9a0c-5d8e7f6a4b3c")

	tests := []struct {
		name  string
		input string
		want  uuid.UUID
		ok    bool
	}{
		{"canonical form", registered.String(), registered, true},
		{"upper case", strings.ToUpper(registered.String()), registered, true},
		{"empty", "", uuid.Nil, false},
		{"blank", " \t ", uuid.Nil, false},
		{"nil uuid", uuid.Nil.String(), uuid.Nil, false},
		{"registry number instead of uuid", "HRB-12345", uuid.Nil, false},
		{"embedded null byte", "6f1c2a9e\x00-3b7d-4e21-9a0c-5d8e7f6a4b3c", uuid.Nil, false},
		{"oversized", strings.Repeat("6f1c2a9e", 40), uuid.Nil, false},
	}

	for kind, parse := range parsers {
		for _, tt := range tests {
			t.Run(kind+"/"+tt.name, func(t *testing.T) {
				got, err := parse(tt.input)
				if !tt.ok {
					assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	}
}

func TestNewIDsAreUsable(t *testing.T) {
	e := NewEntityID()
	assert.False(t, e.IsNil())
	parsed, err := ParseEntityID(e.String())
	require.NoError(t, err)
	assert.Equal(t, e, parsed)

	assert.False(t, NewDeclarationID().IsNil())
	assert.False(t, NewContractID().IsNil())
	assert.False(t, NewSubjectMatterID().IsNil())
	assert.True(t, EntityID{}.IsNil())
	assert.NotEqual(t, NewContractID(), NewContractID())
}

// Guardianship locks ward and guardian in Compare order, so the order must
// depend only on the id bytes.
func TestEntityIDCompare(t *testing.T) {
	low := EntityID(uuid.MustParse("00000000-0000-4000-8000-000000000001"))
	high := EntityID(uuid.MustParse("ffffffff-0000-4000-8000-000000000001"))

	assert.Negative(t, low.Compare(high))
	assert.Positive(t, high.Compare(low))
	assert.Zero(t, low.Compare(low))
}

func TestParseEntityType(t *testing.T) {
	for _, kind := range []EntityType{EntityTypeNaturalPerson, EntityTypeLegalPerson, EntityTypeUnincorporatedOrg} {
		got, err := ParseEntityType(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	for _, bad := range []string{"", "robot", "Legal_Person"} {
		_, err := ParseEntityType(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", bad)
	}
}
