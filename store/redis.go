package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	windowStatusDenied  int64 = 0
	windowStatusAllowed int64 = 1
)

// KEYS[1] window zset, KEYS[2] block flag.
// ARGV: now ms, window ms, limit, block ms, member.
// Returns {allowed, alreadyBlocked, count, retryAfterMs}.
const slideWindowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local block = tonumber(ARGV[4])

local blockTTL = redis.call("PTTL", KEYS[2])
if blockTTL ~= -2 then
  if blockTTL < 0 then
    blockTTL = block
  end
  return {0, 1, 0, blockTTL}
end

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])

if count >= limit then
  if block > 0 then
    redis.call("SET", KEYS[2], "1", "PX", block)
    return {0, 0, count, block}
  end
  local retry = window
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  if retry < 1 then
    retry = 1
  end
  return {0, 0, count, retry}
end

redis.call("ZADD", KEYS[1], now, ARGV[5])
redis.call("PEXPIRE", KEYS[1], window)
return {1, 0, count + 1, 0}
`

var slideWindowLua = redis.NewScript(slideWindowScript)

// KEYS[1] blacklist flag, KEYS[2] last-activity.
// ARGV: now ms, idle ms, baseline ms (0 = none), blacklist ttl ms.
// Returns {status, lastActivityMs}.
const touchActivityScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return {2, 0}
end

local now = tonumber(ARGV[1])
local idle = tonumber(ARGV[2])
local raw = redis.call("GET", KEYS[2])
local last = tonumber(ARGV[3])
if raw then
  last = tonumber(raw) or 0
end

if last > 0 and now - last > idle then
  redis.call("SET", KEYS[1], "1", "PX", ARGV[4], "NX")
  redis.call("DEL", KEYS[2])
  return {3, last}
end

if raw and last > now then
  redis.call("SET", KEYS[2], raw, "PX", idle)
  return {1, last}
end

redis.call("SET", KEYS[2], ARGV[1], "PX", idle)
return {1, now}
`

var touchActivityLua = redis.NewScript(touchActivityScript)

// KEYS[1] counter. ARGV: ttl ms.
// Fixed window: the first hit owns the expiry. A counter left without a TTL is repaired.
const incrWithTTLScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var incrWithTTLLua = redis.NewScript(incrWithTTLScript)

// Redis is a [Store] backed by a go-redis client.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps client: a standalone *redis.Client or a sentinel failover client.
// Redis Cluster is not supported; the composite scripts touch keys in different slots.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// SlideWindow implements [Store.SlideWindow] with a single Lua script.
func (r *Redis) SlideWindow(ctx context.Context, req WindowRequest) (WindowResult, error) {
	res, err := slideWindowLua.Run(
		ctx,
		r.client,
		[]string{req.Key, req.BlockKey},
		unixMillis(req.Now),
		durationMillis(req.Window),
		req.Limit,
		durationMillis(req.BlockDuration),
		req.Member,
	).Int64Slice()
	if err != nil {
		return WindowResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 4 {
		return WindowResult{}, fmt.Errorf("%w: unexpected window reply length %d", ErrUnavailable, len(res))
	}

	return WindowResult{
		Allowed:    res[0] == windowStatusAllowed,
		Blocked:    res[1] == 1,
		Count:      int(res[2]),
		RetryAfter: time.Duration(res[3]) * time.Millisecond,
	}, nil
}

// TouchActivity implements [Store.TouchActivity] with a single Lua script.
func (r *Redis) TouchActivity(ctx context.Context, req ActivityRequest) (ActivityResult, error) {
	var baseline int64
	if !req.Baseline.IsZero() {
		baseline = unixMillis(req.Baseline)
	}

	res, err := touchActivityLua.Run(
		ctx,
		r.client,
		[]string{req.BlacklistKey, req.ActivityKey},
		unixMillis(req.Now),
		durationMillis(req.IdleTimeout),
		baseline,
		durationMillis(req.BlacklistTTL),
	).Int64Slice()
	if err != nil {
		return ActivityResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return ActivityResult{}, fmt.Errorf("%w: unexpected activity reply length %d", ErrUnavailable, len(res))
	}

	return ActivityResult{
		Status:       ActivityStatus(res[0]),
		LastActivity: fromMillis(res[1]),
	}, nil
}

// Revoke implements [Store.Revoke] in one MULTI/EXEC round trip.
func (r *Redis) Revoke(ctx context.Context, blacklistKey, activityKey string, ttl time.Duration) (bool, error) {
	var created *redis.BoolCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, blacklistKey, "1", ttl)
		pipe.Del(ctx, activityKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return created.Val(), nil
}

// IncrWithTTL implements [Store.IncrWithTTL] with a single Lua script.
func (r *Redis) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrWithTTLLua.Run(ctx, r.client, []string{key}, durationMillis(ttl)).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// Exists implements [Store.Exists].
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Ping implements [Store.Ping].
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

var _ Store = (*Redis)(nil)
