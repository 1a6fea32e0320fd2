package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/store"
)

const (
	// DefaultIdleTimeout is the inactivity bound after which a session ends.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultMaxTokenLifetime bounds the blacklist entry TTL.
	DefaultMaxTokenLifetime = 24 * time.Hour
)

// Config holds validator tuning parameters.
type Config struct {
	IdleTimeout      time.Duration
	MaxTokenLifetime time.Duration
	// StoreTimeout bounds each store round trip. Zero means no extra bound.
	StoreTimeout time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Validator enforces idle timeout and revocation for sessions.
type Validator struct {
	store  store.Store
	config Config
}

// NewValidator creates a [Validator]. Zero durations take the package defaults.
func NewValidator(st store.Store, cfg Config) (*Validator, error) {
	if st == nil {
		return nil, errors.New("session validator requires a store")
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxTokenLifetime == 0 {
		cfg.MaxTokenLifetime = DefaultMaxTokenLifetime
	}
	if cfg.IdleTimeout < 0 || cfg.MaxTokenLifetime < 0 {
		return nil, errors.New("session timeouts must be > 0")
	}
	if cfg.MaxTokenLifetime < cfg.IdleTimeout {
		return nil, errors.New("session MaxTokenLifetime must be >= IdleTimeout")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Validator{store: st, config: cfg}, nil
}

// Validate checks claims against revocation and idle timeout and records activity.
//
// Claims must carry IssuedAt. A missing last-activity record falls back to it, so a
// session whose record expired through inactivity is still detected as idle. The cost is
// that a token first presented more than IdleTimeout after issuance is expired on that
// first request and blacklisted, rather than starting a new activity window.
//
// On idle expiry the session is blacklisted before [ErrExpired] is returned, so every
// later attempt fails with [ErrRevoked].
func (v *Validator) Validate(ctx context.Context, claims Claims) (*Session, error) {
	jti := strings.TrimSpace(claims.JTI)
	if jti == "" || claims.IssuedAt.IsZero() {
		return nil, ErrInvalidClaims
	}

	now := v.config.Now()
	if !claims.ExpiresAt.IsZero() && !now.Before(claims.ExpiresAt) {
		return nil, ErrInvalidClaims
	}

	ctx, cancel := v.storeContext(ctx)
	defer cancel()

	res, err := v.store.TouchActivity(ctx, store.ActivityRequest{
		BlacklistKey: store.BlacklistKey(jti),
		ActivityKey:  store.ActivityKey(jti),
		Now:          now,
		Baseline:     claims.IssuedAt,
		IdleTimeout:  v.config.IdleTimeout,
		BlacklistTTL: v.config.MaxTokenLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res.Status {
	case store.ActivityActive:
		return &Session{
			ID:           jti,
			UserID:       claims.UserID,
			Role:         claims.Role,
			IssuedAt:     claims.IssuedAt,
			LastActivity: res.LastActivity,
		}, nil
	case store.ActivityRevoked:
		return nil, ErrRevoked
	case store.ActivityIdleExpired:
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: unknown activity status %d", ErrStoreUnavailable, res.Status)
	}
}

// Invalidate blacklists jti and drops its activity record. It reports whether this call
// created the blacklist entry; invalidating an already revoked session is not an error.
func (v *Validator) Invalidate(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, ErrInvalidClaims
	}

	ctx, cancel := v.storeContext(ctx)
	defer cancel()

	created, err := v.store.Revoke(ctx, store.BlacklistKey(jti), store.ActivityKey(jti), v.config.MaxTokenLifetime)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return created, nil
}

// IsRevoked reports whether jti is blacklisted.
func (v *Validator) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := v.storeContext(ctx)
	defer cancel()

	ok, err := v.store.Exists(ctx, store.BlacklistKey(strings.TrimSpace(jti)))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// IdleTimeout returns the configured idle bound.
func (v *Validator) IdleTimeout() time.Duration {
	return v.config.IdleTimeout
}

func (v *Validator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if v.config.StoreTimeout > 0 {
		return context.WithTimeout(ctx, v.config.StoreTimeout)
	}
	return ctx, func() {}
}
