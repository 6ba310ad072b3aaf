// Package strings normalizes the free-text names entities register: business
// activities, authorities, restrictions and guardianship actions.
package strings

import (
	"maps"
	"slices"
	"strings"
)

// NormalizeName trims s and collapses inner runs of whitespace to one space,
// so "retail  sales" and " retail sales" register as the same activity.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupeAndTrim normalizes every value, drops blanks and keeps the first
// occurrence of each name in input order. A nil or empty input is returned
// unchanged.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		name := NormalizeName(v)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// SortedKeys lists a name set in ascending order for stable digests and
// audit records.
func SortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(set))
}
