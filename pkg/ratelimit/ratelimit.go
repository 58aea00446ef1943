package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter gates a feature by key. Implementations must degrade gracefully:
// callers treat a rejected request as "no results", not as a failure.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RedisLimiter implements a fixed-window counter per feature key.
type RedisLimiter struct {
	client   *redis.Client
	logger   *zap.Logger
	keySpace string
	window   time.Duration
	perKey   int
}

// Config tunes the limiter window.
type Config struct {
	KeySpace string
	Window   time.Duration
	PerKey   int
}

// NewRedisLimiter constructs a limiter backed by Redis counters.
func NewRedisLimiter(client *redis.Client, cfg Config, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeySpace == "" {
		cfg.KeySpace = "ratelimit"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.PerKey <= 0 {
		cfg.PerKey = 30
	}
	return &RedisLimiter{
		client:   client,
		logger:   logger,
		keySpace: cfg.KeySpace,
		window:   cfg.Window,
		perKey:   cfg.PerKey,
	}
}

// Allow increments the window counter for key and reports whether the
// request fits the quota. Redis outages fail open: limiting is a cost guard,
// not a correctness guard.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l.client == nil {
		return true
	}

	// Bucket in nanoseconds so sub-second windows stay valid divisors.
	bucket := fmt.Sprintf("%s:%s:%d", l.keySpace, key, time.Now().UnixNano()/l.window.Nanoseconds())

	count, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, bucket, l.window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit window expiry", zap.String("key", key), zap.Error(err))
		}
	}

	return count <= int64(l.perKey)
}

// Disabled is a Limiter that always allows.
type Disabled struct{}

// Allow implements Limiter.
func (Disabled) Allow(context.Context, string) bool { return true }
