package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemoryValidatorTest(t *testing.T) (*Validator, *store.Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := store.NewMemory(store.WithClock(clock.Now))
	v, err := NewValidator(st, Config{Now: clock.Now})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v, st, clock
}

func newRedisValidatorTest(t *testing.T) (*Validator, *miniredis.Miniredis, *fakeClock, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := &fakeClock{now: time.Now()}
	v, err := NewValidator(store.NewRedis(rdb), Config{Now: clock.Now})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v, mr, clock, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestValidateFirstRequestProceeds(t *testing.T) {
	v, _, clock := newMemoryValidatorTest(t)

	sess, err := v.Validate(context.Background(), Claims{JTI: "j1", UserID: "u1", Role: "user", IssuedAt: clock.Now()})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if sess.ID != "j1" || sess.UserID != "u1" || sess.Role != "user" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !sess.LastActivity.Equal(clock.Now()) {
		t.Fatalf("expected last activity %s, got %s", clock.Now(), sess.LastActivity)
	}
}

func TestValidateAdvancesLastActivity(t *testing.T) {
	v, _, clock := newMemoryValidatorTest(t)
	ctx := context.Background()
	claims := Claims{JTI: "j2", IssuedAt: clock.Now()}

	var prev time.Time
	for i := 0; i < 5; i++ {
		sess, err := v.Validate(ctx, claims)
		if err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
		if sess.LastActivity.Before(prev) {
			t.Fatalf("last activity moved backwards: %s < %s", sess.LastActivity, prev)
		}
		prev = sess.LastActivity
		clock.Advance(20 * time.Minute)
	}
}

func TestValidateIdleExpiryBlacklists(t *testing.T) {
	v, st, clock := newMemoryValidatorTest(t)
	ctx := context.Background()
	claims := Claims{JTI: "j3", IssuedAt: clock.Now()}

	if _, err := v.Validate(ctx, claims); err != nil {
		t.Fatalf("validate: %v", err)
	}

	clock.Advance(DefaultIdleTimeout + time.Second)
	if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if ttl := st.TTL(store.BlacklistKey("j3")); ttl != DefaultMaxTokenLifetime {
		t.Fatalf("expected blacklist ttl %s, got %s", DefaultMaxTokenLifetime, ttl)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrRevoked) {
			t.Fatalf("attempt %d after expiry: expected ErrRevoked, got %v", i, err)
		}
	}
}

func TestValidateIdleWithoutPriorActivity(t *testing.T) {
	v, _, clock := newMemoryValidatorTest(t)
	issued := clock.Now()
	clock.Advance(DefaultIdleTimeout + time.Second)

	_, err := v.Validate(context.Background(), Claims{JTI: "j4", IssuedAt: issued})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired for token idle since issuance, got %v", err)
	}
}

func TestValidateRejectsExpiredOrEmptyClaims(t *testing.T) {
	v, _, clock := newMemoryValidatorTest(t)
	ctx := context.Background()

	if _, err := v.Validate(ctx, Claims{}); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims for empty jti, got %v", err)
	}
	if _, err := v.Validate(ctx, Claims{JTI: "j5", IssuedAt: clock.Now().Add(-time.Hour), ExpiresAt: clock.Now()}); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims for expired claims, got %v", err)
	}
	if _, err := v.Validate(ctx, Claims{JTI: "j5"}); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims without issued-at, got %v", err)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	v, mr, clock, done := newRedisValidatorTest(t)
	defer done()
	ctx := context.Background()
	claims := Claims{JTI: "j6", IssuedAt: clock.Now()}

	if _, err := v.Validate(ctx, claims); err != nil {
		t.Fatalf("validate: %v", err)
	}

	created, err := v.Invalidate(ctx, "j6")
	if err != nil || !created {
		t.Fatalf("first invalidate: created=%v err=%v", created, err)
	}
	created, err = v.Invalidate(ctx, "j6")
	if err != nil || created {
		t.Fatalf("second invalidate: created=%v err=%v", created, err)
	}

	if mr.Exists(store.ActivityKey("j6")) {
		t.Fatal("expected activity record to be deleted")
	}
	if ttl := mr.TTL(store.BlacklistKey("j6")); ttl != DefaultMaxTokenLifetime {
		t.Fatalf("expected blacklist ttl %s, got %s", DefaultMaxTokenLifetime, ttl)
	}

	if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after invalidate, got %v", err)
	}
	revoked, err := v.IsRevoked(ctx, "j6")
	if err != nil || !revoked {
		t.Fatalf("IsRevoked: revoked=%v err=%v", revoked, err)
	}
}

func TestInvalidateWinsOverConcurrentValidate(t *testing.T) {
	v, _, clock, done := newRedisValidatorTest(t)
	defer done()
	ctx := context.Background()
	claims := Claims{JTI: "j7", IssuedAt: clock.Now()}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = v.Validate(ctx, claims)
		}()
	}
	if _, err := v.Invalidate(ctx, "j7"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	wg.Wait()

	if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after invalidate returned, got %v", err)
	}
}

func TestValidateFailsClosedOnStoreError(t *testing.T) {
	v, mr, clock, done := newRedisValidatorTest(t)
	defer done()
	mr.Close()

	if _, err := v.Validate(context.Background(), Claims{JTI: "j8", IssuedAt: clock.Now()}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := v.Invalidate(context.Background(), "j8"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from invalidate, got %v", err)
	}
}

func TestNewValidatorRejectsBadConfig(t *testing.T) {
	if _, err := NewValidator(nil, Config{}); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewValidator(store.NewMemory(), Config{IdleTimeout: time.Hour, MaxTokenLifetime: time.Minute}); err == nil {
		t.Fatal("expected error when lifetime < idle timeout")
	}
}

func TestValidateIdleAfterActivityRecordExpires(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		v, st, clock := newMemoryValidatorTest(t)
		ctx := context.Background()
		claims := Claims{JTI: "j9", IssuedAt: clock.Now()}

		if _, err := v.Validate(ctx, claims); err != nil {
			t.Fatalf("validate: %v", err)
		}
		clock.Advance(DefaultIdleTimeout + time.Second)
		if st.TTL(store.ActivityKey("j9")) > 0 {
			t.Fatal("expected activity record to have expired")
		}
		if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
		if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrRevoked) {
			t.Fatalf("expected ErrRevoked on the next attempt, got %v", err)
		}
	})

	t.Run("redis", func(t *testing.T) {
		v, mr, clock, done := newRedisValidatorTest(t)
		defer done()
		ctx := context.Background()
		claims := Claims{JTI: "j10", IssuedAt: clock.Now()}

		if _, err := v.Validate(ctx, claims); err != nil {
			t.Fatalf("validate: %v", err)
		}
		clock.Advance(DefaultIdleTimeout + time.Second)
		mr.FastForward(DefaultIdleTimeout + time.Second)
		if mr.Exists(store.ActivityKey("j10")) {
			t.Fatal("expected activity record to have expired")
		}
		if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
		if _, err := v.Validate(ctx, claims); !errors.Is(err, ErrRevoked) {
			t.Fatalf("expected ErrRevoked on the next attempt, got %v", err)
		}
	})
}
