package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrAlreadyUsed: a uniqueness rule rejected the write
//   - ErrInvalidReference: a referenced entity does not exist
//   - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyUsed      = errors.New("already used")
	ErrInvalidReference = errors.New("invalid reference")
	ErrUnavailable      = errors.New("unavailable")
)
