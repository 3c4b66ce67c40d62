package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiterAllowBurst(t *testing.T) {
	t.Parallel()

	limiter := NewLocalRateLimiter(2)

	first, err := limiter.Allow(context.Background(), "whatsapp")
	require.NoError(t, err)
	second, err := limiter.Allow(context.Background(), "whatsapp")
	require.NoError(t, err)
	third, err := limiter.Allow(context.Background(), "whatsapp")
	require.NoError(t, err)

	assert.True(t, first)
	assert.True(t, second)
	assert.False(t, third)

	other, err := limiter.Allow(context.Background(), "diagnostic")
	require.NoError(t, err)
	assert.True(t, other, "scopes must not share a bucket")
}

func TestLocalRateLimiterScopeNormalization(t *testing.T) {
	t.Parallel()

	limiter := NewLocalRateLimiter(1)

	allowed, err := limiter.Allow(context.Background(), "WhatsApp")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), " whatsapp ")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = limiter.Allow(context.Background(), "")
	assert.Error(t, err)
}

func TestLocalRateLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	limiter := NewLocalRateLimiter(1)
	require.NoError(t, limiter.Wait(context.Background(), "whatsapp"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx, "whatsapp"))
}
