package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/store"
)

var (
	// ErrRateLimitExceeded is wrapped by rate-limit rejections.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrUnauthorized is wrapped by every 401 rejection. Callers must not reveal the cause.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired marks a session that passed its idle timeout.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked marks a blacklisted session.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrForbidden is wrapped by permission rejections.
	ErrForbidden = errors.New("forbidden")
	// ErrStoreUnavailable marks a key-value store failure.
	ErrStoreUnavailable = errors.New("security store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// classifySessionError maps a validator error onto the root sentinels and a reason code.
func classifySessionError(err error) (Reason, error) {
	switch {
	case errors.Is(err, session.ErrRevoked):
		return ReasonSessionRevoked, errors.Join(ErrUnauthorized, ErrSessionRevoked)
	case errors.Is(err, session.ErrExpired):
		return ReasonSessionExpired, errors.Join(ErrUnauthorized, ErrSessionExpired)
	case errors.Is(err, session.ErrStoreUnavailable), errors.Is(err, store.ErrUnavailable):
		return ReasonStoreUnavailable, errors.Join(ErrUnauthorized, ErrStoreUnavailable)
	default:
		return ReasonInvalidToken, ErrUnauthorized
	}
}

func rateLimitError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimitExceeded
	}
	return err
}
