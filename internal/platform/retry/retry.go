// Package retry runs fallible operations with capped exponential backoff.
// It backs the startup cache ping and the entitlement refresh worker.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Action tells Do how to treat one failed attempt.
type Action int

const (
	// Retry backs off and tries again.
	Retry Action = iota
	// Stop gives up immediately: the error will not heal with time.
	Stop
)

// Policy bounds one retried operation.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// MaxBackoff caps the doubling. Zero leaves it uncapped.
	MaxBackoff time.Duration
	// Classify decides per failure; nil falls back to Transient.
	Classify func(err error) Action
	// OnRetry observes each failed attempt before the backoff sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Transient is the default classifier. Context teardown and errors
// marked permanent stop the loop; connection refusals, timeouts and
// everything else the Redis and Postgres clients surface under load are
// worth another attempt.
func Transient(err error) Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Stop
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return Stop
	}
	return Retry
}

// Do runs op until it succeeds, the policy is exhausted, the classifier
// stops it, or ctx is cancelled during a backoff sleep.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var zero T

	classify := p.Classify
	if classify == nil {
		classify = Transient
	}

	wait := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		if classify(err) == Stop {
			var perm *PermanentError
			if errors.As(err, &perm) {
				return zero, err
			}
			return zero, &PermanentError{Err: err}
		}

		if attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry interrupted: %w", ctx.Err())
		}

		wait *= 2
		if p.MaxBackoff > 0 && wait > p.MaxBackoff {
			wait = p.MaxBackoff
		}
	}
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, p Policy, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

// PermanentError marks an error retrying will not fix. Operations may
// return it directly to stop the loop from inside.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
