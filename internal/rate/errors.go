package rate

import "errors"

var (
	// ErrRateLimited marks a denied check.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidPolicy is returned by NewTable for malformed policy tables.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
