package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/reservation-notifier/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 20
	rateLimitWindow          = time.Second
	minRetryAfter            = 5 * time.Millisecond
	rateLimitKeyPrefix       = "notifier:ratelimit"
)

// windowScript counts a hit in the scope's window. The window starts at the
// first hit and lives as the key's TTL, so every replica shares the same
// window no matter how far their clocks drift. It returns 0 when the hit is
// allowed and the window's remaining milliseconds otherwise.
var windowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current <= tonumber(ARGV[1]) then
  return 0
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  remaining = tonumber(ARGV[2])
end
if remaining == 0 then
  remaining = 1
end
return remaining
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter caps sends per scope across every notifier replica.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(limitPerSec), sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		sleep:       sleepFn,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	retryAfter, err := r.take(ctx, scope)
	if err != nil {
		return false, err
	}
	return retryAfter == 0, nil
}

// Wait sleeps for the window's remaining time between refused hits. Callers
// bound it with ctx.
func (r *RedisRateLimiter) Wait(ctx context.Context, scope string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		retryAfter, err := r.take(ctx, scope)
		if err != nil {
			return err
		}
		if retryAfter == 0 {
			return nil
		}
		if retryAfter < minRetryAfter {
			retryAfter = minRetryAfter
		}

		if err := r.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) take(ctx context.Context, scope string) (time.Duration, error) {
	if r == nil || r.client == nil {
		return 0, fmt.Errorf("rate limiter is not initialized")
	}

	key, err := rateLimitKey(scope)
	if err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	remainingMs, err := windowScript.Run(ctx, r.client, []string{key}, r.limitPerSec, rateLimitWindow.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return time.Duration(remainingMs) * time.Millisecond, nil
}

func rateLimitKey(scope string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(scope))
	if normalized == "" {
		return "", fmt.Errorf("rate limit scope is required")
	}
	return rateLimitKeyPrefix + ":" + normalized, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
