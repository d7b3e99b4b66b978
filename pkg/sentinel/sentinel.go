package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and content backends return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store, or is not visible to the caller
// - ErrConflict: concurrent modification lost the race
// - ErrTimeout: a bounded read or write exceeded its deadline
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrTimeout     = errors.New("timeout")
	ErrUnavailable = errors.New("unavailable")
)
