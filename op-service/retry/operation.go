package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// ErrFailedPermanently is returned when all attempts of an operation failed.
type ErrFailedPermanently struct {
	attempts int
	LastErr  error
}

func (e *ErrFailedPermanently) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.attempts, e.LastErr)
}

func (e *ErrFailedPermanently) Unwrap() error {
	return e.LastErr
}

// Unrecoverable marks an error that must not be retried. Do returns the inner error immediately.
func Unrecoverable(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns an Unrecoverable error, the context is done,
// or maxAttempts attempts have been made.
func Do[T any](ctx context.Context, maxAttempts int, strategy Strategy, op func() (T, error)) (T, error) {
	if maxAttempts < 1 {
		return *new(T), fmt.Errorf("need at least 1 attempt to run op, but have %d max attempts", maxAttempts)
	}
	var lastErr error
	b := backoff.WithContext(backoff.WithMaxRetries(strategy.newBackOff(), uint64(maxAttempts-1)), ctx)
	res, err := backoff.RetryWithData(func() (T, error) {
		res, err := op()
		lastErr = err
		return res, err
	}, b)
	if err == nil {
		return res, nil
	}
	var permanent *backoff.PermanentError
	if errors.As(lastErr, &permanent) || ctx.Err() != nil {
		return res, err
	}
	return res, &ErrFailedPermanently{attempts: maxAttempts, LastErr: err}
}

// Do0 is Do for operations without a result.
func Do0(ctx context.Context, maxAttempts int, strategy Strategy, op func() error) error {
	_, err := Do(ctx, maxAttempts, strategy, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
