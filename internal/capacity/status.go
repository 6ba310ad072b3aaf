package capacity

import (
	"civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	pstrings "civitas/pkg/platform/strings"
)

// Status is the capacity value held by an entity. It is a closed set:
// NaturalCapacity for natural persons, BusinessScope for legal persons and
// AuthorityScope for unincorporated organizations.
//
// Invariant: Status.EntityType() always equals the kind of the holder.
type Status interface {
	EntityType() domain.EntityType
	// Active reports whether the value permits binding acts at all.
	Active() bool
	sealed()
}

// NaturalCapacity is the civil capacity of a natural person.
type NaturalCapacity string

const (
	CapacityFull    NaturalCapacity = "full"
	CapacityLimited NaturalCapacity = "limited"
	CapacityNone    NaturalCapacity = "none"
)

func (NaturalCapacity) EntityType() domain.EntityType { return domain.EntityTypeNaturalPerson }
func (c NaturalCapacity) Active() bool                 { return c == CapacityFull }
func (NaturalCapacity) sealed()                        {}

// BusinessStatus is the operating status of a legal person.
type BusinessStatus string

const (
	BusinessNormal     BusinessStatus = "normal"
	BusinessRestricted BusinessStatus = "restricted"
	BusinessSuspended  BusinessStatus = "suspended"
)

func (s BusinessStatus) IsValid() bool {
	switch s {
	case BusinessNormal, BusinessRestricted, BusinessSuspended:
		return true
	}
	return false
}

// AuthorityStatus is the operating status of an unincorporated organization.
type AuthorityStatus string

const (
	AuthorityFull      AuthorityStatus = "full"
	AuthorityLimited   AuthorityStatus = "limited"
	AuthoritySuspended AuthorityStatus = "suspended"
)

func (s AuthorityStatus) IsValid() bool {
	switch s {
	case AuthorityFull, AuthorityLimited, AuthoritySuspended:
		return true
	}
	return false
}

// activities is the permitted set plus optional restriction list shared by
// both organizational scopes.
type activities struct {
	permitted    map[string]struct{}
	restrictions []string
}

func newActivities(permitted []string) activities {
	a := activities{permitted: make(map[string]struct{})}
	for _, p := range pstrings.DedupeAndTrim(permitted) {
		a.permitted[p] = struct{}{}
	}
	return a
}

func (a activities) allows(name string) bool {
	name = pstrings.NormalizeName(name)
	if _, ok := a.permitted[name]; !ok {
		return false
	}
	for _, r := range a.restrictions {
		if r == name {
			return false
		}
	}
	return true
}

func (a *activities) add(name string) error {
	name = pstrings.NormalizeName(name)
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "activity name cannot be empty")
	}
	if a.permitted == nil {
		a.permitted = make(map[string]struct{})
	}
	a.permitted[name] = struct{}{}
	return nil
}

func (a *activities) restrict(name string) error {
	name = pstrings.NormalizeName(name)
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "restriction cannot be empty")
	}
	for _, r := range a.restrictions {
		if r == name {
			return nil
		}
	}
	a.restrictions = append(a.restrictions, name)
	return nil
}

func (a activities) clone() activities {
	out := activities{permitted: make(map[string]struct{}, len(a.permitted))}
	for k := range a.permitted {
		out.permitted[k] = struct{}{}
	}
	if a.restrictions != nil {
		out.restrictions = append([]string{}, a.restrictions...)
	}
	return out
}

// BusinessScope is a legal person's authorization scope.
type BusinessScope struct {
	status BusinessStatus
	acts   activities
}

// NewBusinessScope returns a Normal scope permitting the given activities.
func NewBusinessScope(permitted ...string) BusinessScope {
	return BusinessScope{status: BusinessNormal, acts: newActivities(permitted)}
}

func (BusinessScope) EntityType() domain.EntityType { return domain.EntityTypeLegalPerson }
func (s BusinessScope) Active() bool                 { return s.status != BusinessSuspended }
func (BusinessScope) sealed()                        {}

func (s BusinessScope) Status() BusinessStatus { return s.status }

// PermittedActivities returns the permitted set in sorted order.
func (s BusinessScope) PermittedActivities() []string { return pstrings.SortedKeys(s.acts.permitted) }

// Restrictions returns the restriction list, nil when none was ever added.
func (s BusinessScope) Restrictions() []string {
	if s.acts.restrictions == nil {
		return nil
	}
	return append([]string{}, s.acts.restrictions...)
}

// CanPerformActivity is true only when the scope is not suspended, the
// activity is permitted and it is not restricted.
func (s BusinessScope) CanPerformActivity(name string) bool {
	return s.status != BusinessSuspended && s.acts.allows(name)
}

func (s *BusinessScope) AddActivity(name string) error    { return s.acts.add(name) }
func (s *BusinessScope) AddRestriction(name string) error { return s.acts.restrict(name) }

func (s *BusinessScope) SetStatus(status BusinessStatus) error {
	if !status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid business status %q", status)
	}
	s.status = status
	return nil
}

// Clone returns a deep copy safe to hand to callers.
func (s BusinessScope) Clone() BusinessScope {
	return BusinessScope{status: s.status, acts: s.acts.clone()}
}

// AuthorityScope is an unincorporated organization's authorization scope.
type AuthorityScope struct {
	status AuthorityStatus
	acts   activities
}

// NewAuthorityScope returns a Full scope permitting the given authorities.
func NewAuthorityScope(permitted ...string) AuthorityScope {
	return AuthorityScope{status: AuthorityFull, acts: newActivities(permitted)}
}

func (AuthorityScope) EntityType() domain.EntityType { return domain.EntityTypeUnincorporatedOrg }
func (s AuthorityScope) Active() bool                 { return s.status != AuthoritySuspended }
func (AuthorityScope) sealed()                        {}

func (s AuthorityScope) Status() AuthorityStatus { return s.status }

func (s AuthorityScope) PermittedAuthorities() []string { return pstrings.SortedKeys(s.acts.permitted) }

func (s AuthorityScope) Restrictions() []string {
	if s.acts.restrictions == nil {
		return nil
	}
	return append([]string{}, s.acts.restrictions...)
}

// CanPerformActivity mirrors BusinessScope.CanPerformActivity.
func (s AuthorityScope) CanPerformActivity(name string) bool {
	return s.status != AuthoritySuspended && s.acts.allows(name)
}

func (s *AuthorityScope) AddAuthority(name string) error   { return s.acts.add(name) }
func (s *AuthorityScope) AddRestriction(name string) error { return s.acts.restrict(name) }

func (s *AuthorityScope) SetStatus(status AuthorityStatus) error {
	if !status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid authority status %q", status)
	}
	s.status = status
	return nil
}

func (s AuthorityScope) Clone() AuthorityScope {
	return AuthorityScope{status: s.status, acts: s.acts.clone()}
}
