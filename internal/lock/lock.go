package lock

import (
	"context"
	"fmt"
	"strings"
)

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	// Acquire returns ok=false without error when the key is already held.
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

const dispatchKeyPrefix = "dispatch:lock"

// DispatchKey names the lock guarding one reservation/kind dispatch unit.
func DispatchKey(reservationID, kind string) string {
	return fmt.Sprintf("%s:%s:%s", dispatchKeyPrefix, strings.TrimSpace(reservationID), strings.ToLower(strings.TrimSpace(kind)))
}
