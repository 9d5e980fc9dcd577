package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrReauthRequired   = errors.New("connection needs re-authorization")
	ErrStaleStatus      = errors.New("status changed since read")
	ErrRecordCapReached = errors.New("per-source record cap reached")
	ErrCipherKeyMismatch = errors.New("tokens were encrypted with a different key")
)
