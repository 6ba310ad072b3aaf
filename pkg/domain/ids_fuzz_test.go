package domain

import (
	"testing"

	"github.com/google/uuid"
)

func FuzzParseIDs(f *testing.F) {
	for _, seed := range []string{
		"",
		"6f1c2a9e-3b7d-4e21-9a0c-5d8e7f6a4b3c",
		"{6f1c2a9e-3b7d-4e21-9a0c-5d8e7f6a4b3c}",
		"urn:uuid:6f1c2a9e-3b7d-4e21-9a0c-5d8e7f6a4b3c",
		uuid.Nil.String(),
		"\xff\xfe",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		results := make(map[string]uuid.UUID, len(parsers))
		accepted := 0
		for kind, parse := range parsers {
			v, err := parse(input)
			if err != nil {
				continue
			}
			accepted++
			if v == uuid.Nil {
				t.Fatalf("%s parser accepted the nil uuid from %q", kind, input)
			}
			results[kind] = v
		}
		if accepted != 0 && accepted != len(parsers) {
			t.Fatalf("parsers disagree on %q", input)
		}

		for kind, v := range results {
			again, err := parsers[kind](v.String())
			if err != nil || again != v {
				t.Fatalf("%s id %s does not survive its own String form", kind, v)
			}
		}
	})
}
