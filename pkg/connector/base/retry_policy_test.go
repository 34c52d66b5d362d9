package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/railstream/pkg/errors"
)

func TestRetryPolicySucceedsAfterFailures(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New(errors.ErrorTypeConnection, "transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		return errors.New(errors.ErrorTypeConnection, "still down")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := policy.ExecuteWithCondition(context.Background(), func() error {
		attempts++
		return errors.New(errors.ErrorTypeAuthentication, "token rejected")
	}, errors.IsRetryable)

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "non-retryable errors should not be retried")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestRetryPolicyRespectsContextCancellation(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 10, InitialDelay: time.Second, Multiplier: 2.0}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	attempts := 0
	err := policy.Execute(ctx, func() error {
		attempts++
		return errors.New(errors.ErrorTypeConnection, "down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicyBackoffGrows(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 100*time.Millisecond, policy.GetDelay(0))
	assert.Equal(t, 200*time.Millisecond, policy.GetDelay(1))
	assert.Equal(t, 400*time.Millisecond, policy.GetDelay(2))
	assert.Equal(t, time.Second, policy.GetDelay(5), "delay should cap at MaxDelay")
}

func TestRetryPolicyJitterStaysInBounds(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        time.Minute,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}

	for i := 0; i < 50; i++ {
		delay := policy.GetDelay(0)
		assert.GreaterOrEqual(t, delay, 75*time.Millisecond)
		assert.LessOrEqual(t, delay, 125*time.Millisecond)
	}
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	policy := NewRetryPolicy(0, 0)
	assert.Equal(t, 1, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.InitialDelay)

	noRetry := NoRetryPolicy()
	attempts := 0
	_ = noRetry.Execute(context.Background(), func() error {
		attempts++
		return errors.New(errors.ErrorTypeConnection, "down")
	})
	assert.Equal(t, 1, attempts)
}
