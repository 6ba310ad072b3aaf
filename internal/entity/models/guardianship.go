package models

import (
	"time"

	id "civitas/pkg/domain"
	pstrings "civitas/pkg/platform/strings"
)

// Guardianship is the directed relation held by the ward. The guardian side
// only carries a boolean marker; finding a guardian's wards is an id lookup
// in the registry.
type Guardianship struct {
	Guardian  id.EntityID
	Ward      id.EntityID
	Scope     GuardianshipScope
	CreatedAt time.Time
	// ValidUntil is nil for an open-ended relation.
	ValidUntil *time.Time
}

// IsActive reports whether the relation is in force at now.
func (g Guardianship) IsActive(now time.Time) bool {
	if now.Before(g.CreatedAt) {
		return false
	}
	return g.ValidUntil == nil || now.Before(*g.ValidUntil)
}

func (g Guardianship) clone() Guardianship {
	out := g
	out.Scope = g.Scope.Clone()
	if g.ValidUntil != nil {
		until := *g.ValidUntil
		out.ValidUntil = &until
	}
	return out
}

// GuardianshipScope is the set of actions the guardian may take for the ward.
type GuardianshipScope struct {
	permitted map[string]struct{}
}

func NewGuardianshipScope(actions ...string) GuardianshipScope {
	s := GuardianshipScope{permitted: make(map[string]struct{})}
	for _, a := range pstrings.DedupeAndTrim(actions) {
		s.permitted[a] = struct{}{}
	}
	return s
}

func (s GuardianshipScope) Permits(action string) bool {
	_, ok := s.permitted[pstrings.NormalizeName(action)]
	return ok
}

// Actions returns the permitted actions in sorted order.
func (s GuardianshipScope) Actions() []string {
	return pstrings.SortedKeys(s.permitted)
}

func (s GuardianshipScope) Clone() GuardianshipScope {
	out := GuardianshipScope{permitted: make(map[string]struct{}, len(s.permitted))}
	for k := range s.permitted {
		out.permitted[k] = struct{}{}
	}
	return out
}
