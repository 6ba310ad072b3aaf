package testutil

import "testing"

// Scenario steps nest as subtests, so a failure reads as the legal situation
// being exercised, e.g. "Given a sale/When the buyer loses capacity/Then ...".

func Given(t *testing.T, situation string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", situation, fn)
}

func When(t *testing.T, event string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", event, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", outcome, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run(keyword+" "+desc, fn) {
		t.Logf("%s step failed: %s", keyword, desc)
	}
}
