package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every transport or server error returned by a [Store].
var ErrUnavailable = errors.New("store unavailable")

// Store is the contract every goGuard component depends on.
//
// Implementations must be safe for concurrent use. Errors returned by any method wrap
// [ErrUnavailable].
type Store interface {
	// SlideWindow runs one sliding-window rate-limit step atomically.
	SlideWindow(ctx context.Context, req WindowRequest) (WindowResult, error)
	// TouchActivity runs one session idle check atomically.
	TouchActivity(ctx context.Context, req ActivityRequest) (ActivityResult, error)
	// Revoke creates the blacklist entry if absent and deletes the activity record.
	// It reports whether the blacklist entry was newly created.
	Revoke(ctx context.Context, blacklistKey, activityKey string, ttl time.Duration) (bool, error)
	// IncrWithTTL increments key and sets ttl on the first increment only.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// WindowRequest describes one sliding-window check.
type WindowRequest struct {
	Key           string
	BlockKey      string
	Member        string
	Now           time.Time
	Window        time.Duration
	Limit         int
	BlockDuration time.Duration
}

// WindowResult is the outcome of [Store.SlideWindow].
//
// Blocked is set only when a block entry already existed before the call. Count is the
// number of entries in the window after the call (zero when Blocked).
type WindowResult struct {
	Allowed    bool
	Blocked    bool
	Count      int
	RetryAfter time.Duration
}

// ActivityRequest describes one session activity check.
//
// Baseline is used in place of a missing last-activity record. A zero Baseline means a
// missing record is treated as the first request of the session.
type ActivityRequest struct {
	BlacklistKey string
	ActivityKey  string
	Now          time.Time
	Baseline     time.Time
	IdleTimeout  time.Duration
	BlacklistTTL time.Duration
}

// ActivityStatus is the outcome class of [Store.TouchActivity].
type ActivityStatus int

const (
	// ActivityActive means the session is valid and last activity was advanced.
	ActivityActive ActivityStatus = iota + 1
	// ActivityRevoked means the blacklist entry exists.
	ActivityRevoked
	// ActivityIdleExpired means the session exceeded the idle timeout and was revoked by this call.
	ActivityIdleExpired
)

// ActivityResult is the outcome of [Store.TouchActivity].
//
// LastActivity holds the stored value after the call for ActivityActive, and the stale
// value that triggered expiry for ActivityIdleExpired.
type ActivityResult struct {
	Status       ActivityStatus
	LastActivity time.Time
}

func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func durationMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms <= 0 && d > 0 {
		return 1
	}
	return ms
}
