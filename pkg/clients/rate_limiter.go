package clients

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// NewRateLimiter creates a new rate limiter with the specified rate
// (requests per second) and burst size.
func NewRateLimiter(rate int, burst int) RateLimiter {
	return NewTokenBucketRateLimiter(float64(rate), burst)
}

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Allow checks if a request is allowed
	Allow() bool

	// Wait blocks until a request is allowed
	Wait(ctx context.Context) error

	// SetRate updates the rate limit
	SetRate(rate float64)

	// SetBurst updates the burst size
	SetBurst(burst int)

	// GetStats returns rate limiter statistics
	GetStats() RateLimiterStats
}

// RateLimiterStats provides statistics about rate limiter performance
// and current state for monitoring and debugging.
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	CurrentTokens   float64       `json:"current_tokens"`
	LastRefill      time.Time     `json:"last_refill"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

// TokenBucketRateLimiter implements the token bucket algorithm.
// Tokens are added at a constant rate and consumed by requests.
type TokenBucketRateLimiter struct {
	rate     float64
	burst    int
	tokens   float64
	lastTime time.Time

	allowedRequests int64
	blockedRequests int64
	totalWaitTime   int64

	mu sync.Mutex
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter with the
// specified rate (tokens per second) and burst capacity (maximum tokens).
func NewTokenBucketRateLimiter(rate float64, burst int) *TokenBucketRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketRateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: time.Now(),
	}
}

// Allow checks if a request is allowed immediately.
// Returns true if a token is available and consumes it, false otherwise.
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1.0 {
		tb.tokens--
		atomic.AddInt64(&tb.allowedRequests, 1)
		return true
	}

	atomic.AddInt64(&tb.blockedRequests, 1)
	return false
}

// Wait blocks until a request is allowed
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	start := time.Now()

	for {
		tb.mu.Lock()
		tb.refill()

		if tb.tokens >= 1.0 {
			tb.tokens--
			atomic.AddInt64(&tb.allowedRequests, 1)
			atomic.AddInt64(&tb.totalWaitTime, time.Since(start).Nanoseconds())
			tb.mu.Unlock()
			return nil
		}

		deficit := 1.0 - tb.tokens
		waitTime := time.Duration(deficit / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
			continue
		case <-ctx.Done():
			timer.Stop()
			atomic.AddInt64(&tb.blockedRequests, 1)
			return ctx.Err()
		}
	}
}

// refill adds tokens based on elapsed time
func (tb *TokenBucketRateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastTime).Seconds()

	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}

	tb.lastTime = now
}

// SetRate updates the rate limit
func (tb *TokenBucketRateLimiter) SetRate(rate float64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.rate = rate
}

// SetBurst updates the burst size
func (tb *TokenBucketRateLimiter) SetBurst(burst int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.burst = burst
	if tb.tokens > float64(burst) {
		tb.tokens = float64(burst)
	}
}

// GetStats returns rate limiter statistics
func (tb *TokenBucketRateLimiter) GetStats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	allowed := atomic.LoadInt64(&tb.allowedRequests)
	blocked := atomic.LoadInt64(&tb.blockedRequests)
	totalWait := atomic.LoadInt64(&tb.totalWaitTime)

	avgWait := time.Duration(0)
	if allowed > 0 {
		avgWait = time.Duration(totalWait / allowed)
	}

	return RateLimiterStats{
		Rate:            tb.rate,
		Burst:           tb.burst,
		AllowedRequests: allowed,
		BlockedRequests: blocked,
		CurrentTokens:   tb.tokens,
		LastRefill:      tb.lastTime,
		AverageWaitTime: avgWait,
	}
}
