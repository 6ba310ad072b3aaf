// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"time"

	"civitas/pkg/requestcontext"
)

// FixedNow is the reference instant used across tests.
var FixedNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

// Clock returns a func() time.Time that always reports t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// BornYearsAgo returns a birth date exactly years before now.
func BornYearsAgo(now time.Time, years int) time.Time {
	return now.AddDate(-years, 0, 0)
}

// Context returns a background context tagged with requestID, if any.
func Context(requestID string) context.Context {
	if requestID == "" {
		return context.Background()
	}
	return requestcontext.WithRequestID(context.Background(), requestID)
}
