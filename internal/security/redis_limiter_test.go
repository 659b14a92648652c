package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisLimiter(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis, *RateLimiter, *FixedClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := NewFixedClock(epoch)
	fallback := NewRateLimiter(time.Hour, testLogger())
	limiter := NewRedisRateLimiter(client, "test:", fallback, testLogger()).
		WithClock(clock).
		WithTimeout(time.Second)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter, mr, fallback, clock
}

func TestRedisRateLimiterBoundary(t *testing.T) {
	const (
		limit  = 3
		window = time.Second
		id     = "user123:login"
	)
	limiter, mr, fallback, clock := newMiniredisLimiter(t)
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		allowed, err := limiter.Allow(ctx, id, limit, window)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !allowed {
			t.Fatalf("Expected call %d to be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, id, limit, window)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if allowed {
		t.Error("Expected call beyond limit to be denied")
	}

	members, err := mr.ZMembers("test:" + id)
	if err != nil {
		t.Fatalf("Expected window key to exist, got %v", err)
	}
	if len(members) != limit {
		t.Errorf("Expected denied call not to be recorded, got %d members", len(members))
	}
	if ttl := mr.TTL("test:" + id); ttl <= 0 || ttl > window {
		t.Errorf("Expected key TTL in (0, %s], got %s", window, ttl)
	}

	clock.Set(epoch.Add(window - time.Microsecond))
	if limiter.IsAllowed(id, limit, window) {
		t.Error("Expected call just inside the window to be denied")
	}

	clock.Set(epoch.Add(window + time.Millisecond))
	if !limiter.IsAllowed(id, limit, window) {
		t.Error("Expected call after window elapsed to be allowed")
	}
	members, _ = mr.ZMembers("test:" + id)
	if len(members) != 1 {
		t.Errorf("Expected expired entries pruned, got %d members", len(members))
	}

	if fallback.Len() != 0 {
		t.Errorf("Expected fallback to stay unused, tracked %d identifiers", fallback.Len())
	}
}

func TestRedisRateLimiterSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := NewFixedClock(epoch)
	newLimiter := func() *RedisRateLimiter {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		l := NewRedisRateLimiter(client, "", nil, testLogger()).WithClock(clock)
		t.Cleanup(func() { _ = l.Close() })
		return l
	}
	first, second := newLimiter(), newLimiter()

	if !first.IsAllowed("shared:export", 2, time.Minute) {
		t.Fatal("Expected first call to be allowed")
	}
	if !second.IsAllowed("shared:export", 2, time.Minute) {
		t.Fatal("Expected second call to be allowed")
	}
	if first.IsAllowed("shared:export", 2, time.Minute) || second.IsAllowed("shared:export", 2, time.Minute) {
		t.Error("Expected both instances to see the shared limit")
	}
}

func TestRedisRateLimiterPing(t *testing.T) {
	limiter, mr, _, _ := newMiniredisLimiter(t)

	if err := limiter.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}

	mr.Close()
	if err := limiter.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail after redis stopped")
	}
}
