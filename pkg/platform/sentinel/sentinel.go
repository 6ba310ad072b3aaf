package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and lock helpers return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity or declaration is not registered
//   - ErrConflict: a record with the same identity is already registered
//   - ErrInvalidState: record is in the wrong state for the requested operation
//   - ErrLockUnavailable: a write gate could not be acquired before the caller gave up
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrLockUnavailable = errors.New("lock unavailable")
)
