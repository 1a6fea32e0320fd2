package rate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/store"
	"github.com/google/uuid"
)

// Config holds limiter tuning parameters.
type Config struct {
	// StoreTimeout bounds each store round trip. Zero means no extra bound.
	StoreTimeout time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Decision is the outcome of one [Limiter.Check].
type Decision struct {
	Allowed    bool
	Blocked    bool
	FailOpen   bool
	PolicyPath string
	Policy     Policy
	Remaining  int
	RetryAfter time.Duration
	Err        error
}

// Limiter enforces per-path, per-IP sliding-window limits through a [store.Store].
type Limiter struct {
	store  store.Store
	table  *Table
	config Config
}

// New creates a [Limiter]. table must come from [NewTable].
func New(st store.Store, table *Table, cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		store:  st,
		table:  table,
		config: cfg,
	}
}

// Check counts one request for (path, ip) and reports whether it may proceed.
//
// The request that would bring the window above Limit is denied; with a block duration
// configured it also creates a block entry. Store failures fail open: the decision is
// Allowed with FailOpen set and Err wrapping [store.ErrUnavailable].
//
// The store call is detached from ctx cancellation so a dropped client cannot leave a
// half-applied window behind.
func (l *Limiter) Check(ctx context.Context, path, ip string) Decision {
	policyPath, policy := l.table.Lookup(path)
	ip = strings.TrimSpace(ip)

	ctx = context.WithoutCancel(ctx)
	if l.config.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.StoreTimeout)
		defer cancel()
	}

	now := l.config.Now()
	res, err := l.store.SlideWindow(ctx, store.WindowRequest{
		Key:           store.RateLimitKey(policyPath, ip),
		BlockKey:      store.BlockKey(policyPath, ip),
		Member:        strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString(),
		Now:           now,
		Window:        policy.Window,
		Limit:         policy.Limit,
		BlockDuration: policy.BlockDuration,
	})

	d := Decision{
		PolicyPath: policyPath,
		Policy:     policy,
	}
	if err != nil {
		d.Allowed = true
		d.FailOpen = true
		d.Remaining = policy.Limit
		d.Err = err
		return d
	}

	d.Allowed = res.Allowed
	d.Blocked = res.Blocked
	d.RetryAfter = res.RetryAfter
	if res.Allowed {
		d.Remaining = policy.Limit - res.Count
		if d.Remaining < 0 {
			d.Remaining = 0
		}
	} else {
		d.Err = ErrRateLimited
	}

	return d
}

// Table returns the policy table in use.
func (l *Limiter) Table() *Table {
	return l.table
}
