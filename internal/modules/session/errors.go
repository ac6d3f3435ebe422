package session

import "errors"

var (
	ErrTokenRevoked        = errors.New("token revoked")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

// ErrStoreUnavailable wraps ledger failures. Callers must deny access.
var ErrStoreUnavailable = errors.New("session store unavailable")

var ErrDeviceLabelRequired = errors.New("device label required")
