package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the service locator and the
// upstream clients return these (optionally wrapped) so services can translate
// them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store or upstream
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: entity in wrong state for the requested write
//   - ErrUnavailable: a dependency cannot be reached right now
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
