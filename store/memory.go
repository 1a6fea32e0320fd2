package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memValue struct {
	value   string
	expires time.Time
}

type memEntry struct {
	at     int64
	member string
}

type memWindow struct {
	entries []memEntry
	expires time.Time
}

// Memory is an in-process [Store]. It keeps the same atomicity guarantees as [Redis]
// within a single process and is intended for tests, demos, and single-node setups.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	values  map[string]memValue
	windows map[string]*memWindow
}

// MemoryOption configures a [Memory] store.
type MemoryOption func(*Memory)

// WithClock overrides the clock used for TTL expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:     time.Now,
		values:  make(map[string]memValue),
		windows: make(map[string]*memWindow),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SlideWindow implements [Store.SlideWindow].
func (m *Memory) SlideWindow(ctx context.Context, req WindowRequest) (WindowResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if v, ok := m.getLocked(req.BlockKey, now); ok {
		retry := req.BlockDuration
		if !v.expires.IsZero() {
			retry = v.expires.Sub(now)
		}
		return WindowResult{Blocked: true, RetryAfter: retry}, nil
	}

	nowMs := unixMillis(req.Now)
	windowMs := durationMillis(req.Window)

	w := m.windows[req.Key]
	if w != nil && !w.expires.IsZero() && !now.Before(w.expires) {
		delete(m.windows, req.Key)
		w = nil
	}
	if w == nil {
		w = &memWindow{}
	}

	cutoff := nowMs - windowMs
	kept := w.entries[:0]
	for _, e := range w.entries {
		if e.at > cutoff {
			kept = append(kept, e)
		}
	}
	w.entries = kept
	count := len(w.entries)

	if count >= req.Limit {
		m.windows[req.Key] = w
		if req.BlockDuration > 0 {
			m.values[req.BlockKey] = memValue{value: "1", expires: now.Add(req.BlockDuration)}
			return WindowResult{Count: count, RetryAfter: req.BlockDuration}, nil
		}
		retry := time.Duration(w.entries[0].at+windowMs-nowMs) * time.Millisecond
		if count == 0 {
			retry = req.Window
		}
		if retry < time.Millisecond {
			retry = time.Millisecond
		}
		return WindowResult{Count: count, RetryAfter: retry}, nil
	}

	w.entries = append(w.entries, memEntry{at: nowMs, member: req.Member})
	sort.SliceStable(w.entries, func(i, j int) bool { return w.entries[i].at < w.entries[j].at })
	w.expires = now.Add(req.Window)
	m.windows[req.Key] = w

	return WindowResult{Allowed: true, Count: count + 1}, nil
}

// TouchActivity implements [Store.TouchActivity].
func (m *Memory) TouchActivity(ctx context.Context, req ActivityRequest) (ActivityResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, ok := m.getLocked(req.BlacklistKey, now); ok {
		return ActivityResult{Status: ActivityRevoked}, nil
	}

	nowMs := unixMillis(req.Now)
	var last int64
	if !req.Baseline.IsZero() {
		last = unixMillis(req.Baseline)
	}
	raw, present := m.getLocked(req.ActivityKey, now)
	if present {
		parsed, err := strconv.ParseInt(raw.value, 10, 64)
		if err == nil {
			last = parsed
		} else {
			last = 0
		}
	}

	if last > 0 && nowMs-last > durationMillis(req.IdleTimeout) {
		m.values[req.BlacklistKey] = memValue{value: "1", expires: now.Add(req.BlacklistTTL)}
		delete(m.values, req.ActivityKey)
		return ActivityResult{Status: ActivityIdleExpired, LastActivity: fromMillis(last)}, nil
	}

	next := nowMs
	if present && last > nowMs {
		next = last
	}
	m.values[req.ActivityKey] = memValue{
		value:   strconv.FormatInt(next, 10),
		expires: now.Add(req.IdleTimeout),
	}
	return ActivityResult{Status: ActivityActive, LastActivity: fromMillis(next)}, nil
}

// Revoke implements [Store.Revoke].
func (m *Memory) Revoke(ctx context.Context, blacklistKey, activityKey string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	delete(m.values, activityKey)
	if _, ok := m.getLocked(blacklistKey, now); ok {
		return false, nil
	}
	m.values[blacklistKey] = memValue{value: "1", expires: expiry(now, ttl)}
	return true, nil
}

// IncrWithTTL implements [Store.IncrWithTTL].
func (m *Memory) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.getLocked(key, now)
	if !ok {
		m.values[key] = memValue{value: "1", expires: expiry(now, ttl)}
		return 1, nil
	}
	n, err := strconv.ParseInt(v.value, 10, 64)
	if err != nil {
		n = 0
	}
	n++
	v.value = strconv.FormatInt(n, 10)
	m.values[key] = v
	return n, nil
}

// Exists implements [Store.Exists].
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.getLocked(key, m.now()); ok {
		return true, nil
	}
	w, ok := m.windows[key]
	return ok && (w.expires.IsZero() || m.now().Before(w.expires)), nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// TTL returns the remaining lifetime of a value key, or zero when absent.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.getLocked(key, now)
	if !ok || v.expires.IsZero() {
		return 0
	}
	return v.expires.Sub(now)
}

func (m *Memory) getLocked(key string, now time.Time) (memValue, bool) {
	v, ok := m.values[key]
	if !ok {
		return memValue{}, false
	}
	if !v.expires.IsZero() && !now.Before(v.expires) {
		delete(m.values, key)
		return memValue{}, false
	}
	return v, true
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

var _ Store = (*Memory)(nil)
