package data

import "errors"

// Sentinel errors for invalid repository input. Store failures are wrapped
// apperrors values instead.
var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrIdentityIDRequired = errors.New("identity id is required")
	ErrLockoutKeyRequired = errors.New("lockout key is required")
)
