package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/radiocast/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errPermanent = errors.New("permanent")
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, retry.OnlyIf(errTransient), func() (string, error) {
		calls++
		return "128k", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "128k", val)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	policy := fastPolicy
	policy.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	val, err := retry.Do(context.Background(), policy, retry.OnlyIf(errTransient), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, retry.OnlyIf(errTransient), func() (int, error) {
		calls++
		return 0, errPermanent
	})

	var permanent *retry.PermanentError
	require.ErrorAs(t, err, &permanent)
	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, retry.OnlyIf(errTransient), func() (int, error) {
		calls++
		return 0, errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_BackoffFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := retry.Policy{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 1500 * time.Millisecond, Clock: clock}
	var backoffs []time.Duration
	policy.OnRetry = func(_ int, _ error, backoff time.Duration) { backoffs = append(backoffs, backoff) }

	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(context.Background(), policy, retry.OnlyIf(errTransient), func() (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	ctx := context.Background()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(1500 * time.Millisecond)

	require.Error(t, <-done)
	assert.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, backoffs)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.Policy{MaxAttempts: 5, InitialBackoff: time.Hour}
	policy.OnRetry = func(int, error, time.Duration) { cancel() }

	_, err := retry.Do(ctx, policy, retry.OnlyIf(errTransient), func() (int, error) {
		return 0, errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RejectsZeroAttempts(t *testing.T) {
	_, err := retry.Do(context.Background(), retry.Policy{}, retry.OnlyIf(errTransient), func() (int, error) {
		return 1, nil
	})

	assert.Error(t, err)
}
