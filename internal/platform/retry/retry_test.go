package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-starline/thecalcify/internal/platform/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	val, err := retry.Do(context.Background(), fastPolicy, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, val)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("transient")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, func() (struct{}, error) {
		calls++
		return struct{}{}, underlying
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, underlying)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_ClassifierStopsImmediately(t *testing.T) {
	policy := fastPolicy
	policy.Classify = func(error) retry.Action { return retry.Stop }

	boom := errors.New("boom")
	calls := 0
	_, err := retry.Do(context.Background(), policy, func() (struct{}, error) {
		calls++
		return struct{}{}, boom
	})

	var perm *retry.PermanentError
	require.ErrorAs(t, err, &perm)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorFromOperationStops(t *testing.T) {
	boom := errors.New("bad credentials")
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, func() error {
		calls++
		return &retry.PermanentError{Err: boom}
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.DoVoid(ctx, fastPolicy, func() error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransient_Classification(t *testing.T) {
	assert.Equal(t, retry.Stop, retry.Transient(context.Canceled))
	assert.Equal(t, retry.Stop, retry.Transient(context.DeadlineExceeded))
	assert.Equal(t, retry.Stop, retry.Transient(&retry.PermanentError{Err: errors.New("no such user")}))
	assert.Equal(t, retry.Retry, retry.Transient(errors.New("connection refused")))
}

func TestDo_OnRetryObservesEachFailure(t *testing.T) {
	policy := fastPolicy
	var attempts []int
	policy.OnRetry = func(attempt int, _ error, _ time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = retry.DoVoid(context.Background(), policy, func() error {
		return errors.New("transient")
	})
	assert.Equal(t, []int{1, 2}, attempts)
}
