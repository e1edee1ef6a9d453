package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Backends return these (optionally
// wrapped) so services can translate them into domain errors or, for drafts,
// into "no draft".
//
//   - ErrNotFound: key or record does not exist
//   - ErrUnavailable: storage or upstream temporarily unavailable
//   - ErrConflict: record exists in an incompatible state
//   - ErrInvalidState: component not ready for the operation
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
