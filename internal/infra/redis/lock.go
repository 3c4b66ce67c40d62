package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/reservation-notifier/internal/lock"
	goredis "github.com/redis/go-redis/v9"
)

const defaultDispatchLockTTL = 30 * time.Second

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*DispatchLocker)(nil)

// DispatchLocker guards one reservation/kind dispatch unit across replicas.
// A lock is only released by the holder that acquired it.
type DispatchLocker struct {
	client *goredis.Client
	ttl    time.Duration
	token  func() string
}

func NewDispatchLocker(client *goredis.Client, ttl time.Duration) (*DispatchLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultDispatchLockTTL
	}

	return &DispatchLocker{
		client: client,
		ttl:    ttl,
		token:  func() string { return uuid.NewString() },
	}, nil
}

func (l *DispatchLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, fmt.Errorf("dispatch locker is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return "", false, fmt.Errorf("lock key is required")
	}

	token := l.token()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (l *DispatchLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("dispatch locker is not initialized")
	}
	if token == "" {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to release dispatch lock: %w", err)
	}

	return nil
}
