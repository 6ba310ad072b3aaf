// Package capacity computes legal capacity from biographical and
// organizational facts.
//
// Domain purity: no I/O, no context.Context and no time.Now() calls. The
// evaluation instant is always a parameter so callers control the clock.
package capacity

import (
	"time"

	dErrors "civitas/pkg/domain-errors"
)

// Age thresholds from the civil code.
const (
	AdultAge       = 18
	LimitedAge     = 8
	GuardianMinAge = 18
)

// MentalStatus classifies a natural person's ability to understand their acts.
type MentalStatus string

const (
	MentalNormal            MentalStatus = "normal"
	MentalPartiallyImpaired MentalStatus = "partially_impaired"
	MentalSeverelyImpaired  MentalStatus = "severely_impaired"
)

// ParseMentalStatus constructs a MentalStatus from external input.
func ParseMentalStatus(s string) (MentalStatus, error) {
	m := MentalStatus(s)
	if !m.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid mental status %q", s)
	}
	return m, nil
}

func (m MentalStatus) IsValid() bool {
	switch m {
	case MentalNormal, MentalPartiallyImpaired, MentalSeverelyImpaired:
		return true
	}
	return false
}

// Age returns the number of completed years between birth and now.
// A birth date in the future yields 0.
func Age(birth, now time.Time) int {
	birth, now = birth.UTC(), now.UTC()
	if now.Before(birth) {
		return 0
	}
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// Evaluate applies the natural-person capacity policy:
//
//	severely impaired (any age)       -> none
//	partially impaired (any age)      -> limited
//	normal, age >= 18                 -> full
//	normal, 8 <= age < 18             -> limited
//	anything else                     -> none
func Evaluate(birth time.Time, mental MentalStatus, now time.Time) NaturalCapacity {
	switch mental {
	case MentalSeverelyImpaired:
		return CapacityNone
	case MentalPartiallyImpaired:
		return CapacityLimited
	case MentalNormal:
		age := Age(birth, now)
		switch {
		case age >= AdultAge:
			return CapacityFull
		case age >= LimitedAge:
			return CapacityLimited
		}
	}
	return CapacityNone
}

// CanActAsGuardian is stricter than full capacity: the guardian must also be
// of normal mental status and at least GuardianMinAge.
func CanActAsGuardian(c NaturalCapacity, mental MentalStatus, age int) bool {
	return c == CapacityFull && mental == MentalNormal && age >= GuardianMinAge
}
