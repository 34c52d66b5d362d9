package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowWithinBurst(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "request %d should be allowed within burst", i)
	}
	assert.False(t, limiter.Allow(), "request beyond burst should be blocked")

	stats := limiter.GetStats()
	assert.Equal(t, int64(3), stats.AllowedRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
}

func TestTokenBucketRefill(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(100, 1)

	require.True(t, limiter.Allow())
	require.False(t, limiter.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, limiter.Allow(), "token should refill at the configured rate")
}

func TestTokenBucketWait(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(50, 1)

	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx)
	require.NoError(t, err)
	assert.Greater(t, time.Since(start), time.Duration(0))
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(0.01, 1)

	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketSetBurstClampsTokens(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, 10)

	limiter.SetBurst(2)

	stats := limiter.GetStats()
	assert.Equal(t, 2, stats.Burst)
	assert.LessOrEqual(t, stats.CurrentTokens, 2.0)
}

func TestNewRateLimiterDefaultsBurst(t *testing.T) {
	limiter := NewRateLimiter(10, 0)
	assert.True(t, limiter.Allow(), "burst of zero should default to one token")
}
