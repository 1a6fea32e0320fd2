package session

import "errors"

var (
	// ErrRevoked is returned when the session id is blacklisted.
	ErrRevoked = errors.New("session revoked")
	// ErrExpired is returned when the session exceeded the idle timeout.
	ErrExpired = errors.New("session expired")
	// ErrInvalidClaims is returned for claims without a session id, or past their expiry.
	ErrInvalidClaims = errors.New("invalid session claims")
	// ErrStoreUnavailable is returned when the store could not answer.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
