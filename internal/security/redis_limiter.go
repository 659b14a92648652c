package security

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/monitoring"
)

//go:embed sliding_window.lua
var slidingWindowScript string

// DefaultRedisKeyPrefix namespaces limiter keys
const DefaultRedisKeyPrefix = "crmguard:ratelimit:"

// RedisRateLimiter shares sliding windows across processes through Redis.
// When Redis is unreachable IsAllowed falls back to a local RateLimiter so a
// cache outage degrades to per-process limits instead of failing open.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	script    *redis.Script
	keyPrefix string
	timeout   time.Duration
	fallback  *RateLimiter
	clock     Clock
	logger    *logging.Logger

	instance  string
	seq       atomic.Uint64
	closeOnce sync.Once
}

// NewRedisRateLimiter creates a limiter over client.
// keyPrefix is prepended to every identifier ("" uses DefaultRedisKeyPrefix).
func NewRedisRateLimiter(client redis.UniversalClient, keyPrefix string, fallback *RateLimiter, logger *logging.Logger) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	if logger == nil {
		logger = logging.New("ratelimit-redis", logging.LevelInfo)
	}
	if fallback == nil {
		fallback = NewRateLimiter(DefaultIdleHorizon, logger)
	}

	var id [6]byte
	_, _ = rand.Read(id[:])

	return &RedisRateLimiter{
		client:    client,
		script:    redis.NewScript(slidingWindowScript),
		keyPrefix: keyPrefix,
		timeout:   250 * time.Millisecond,
		fallback:  fallback,
		clock:     SystemClock{},
		logger:    logger,
		instance:  hex.EncodeToString(id[:]),
	}
}

// NewRedisRateLimiterFromURL parses a redis:// or rediss:// URL
func NewRedisRateLimiterFromURL(redisURL string, fallback *RateLimiter, logger *logging.Logger) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisRateLimiter(redis.NewClient(opts), "", fallback, logger), nil
}

// WithClock sets a custom clock (for testing)
func (r *RedisRateLimiter) WithClock(clock Clock) *RedisRateLimiter {
	r.clock = clock
	r.fallback.WithClock(clock)
	return r
}

// WithTimeout bounds each Redis round trip made by IsAllowed
func (r *RedisRateLimiter) WithTimeout(d time.Duration) *RedisRateLimiter {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Allow runs the sliding window check in Redis
func (r *RedisRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	now := r.clock.Now().UnixMicro()
	member := fmt.Sprintf("%d-%s-%d", now, r.instance, r.seq.Add(1))

	res, err := r.script.Run(ctx, r.client,
		[]string{r.keyPrefix + identifier},
		now,
		window.Microseconds(),
		limit,
		member,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}
	return res == 1, nil
}

// IsAllowed implements Limiter
func (r *RedisRateLimiter) IsAllowed(identifier string, limit int, window time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	allowed, err := r.Allow(ctx, identifier, limit, window)
	if err != nil {
		r.logger.WarnKV("Redis rate limiter unavailable, using local window", "identifier", identifier, "error", err)
		return r.fallback.IsAllowed(identifier, limit, window)
	}

	monitoring.RecordRateLimitDecision(allowed)
	return allowed
}

// Ping checks connectivity
func (r *RedisRateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client and the fallback's sweep loop.
// Safe to call multiple times.
func (r *RedisRateLimiter) Close() error {
	var err error
	r.closeOnce.Do(func() {
		_ = r.fallback.Close()
		err = r.client.Close()
	})
	return err
}
