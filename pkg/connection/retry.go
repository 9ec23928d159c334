package connection

import (
	"context"
	"errors"
	"time"
)

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string { return e.Err.Error() }

func (e *Permanent) Unwrap() error { return e.Err }

// Attempt is reported to an OnRetry observer before each wait.
type Attempt struct {
	Number int
	Err    error
	Delay  time.Duration
}

// RetryOption configures Retry.
type RetryOption func(*retryOptions)

type retryOptions struct {
	onRetry func(Attempt)
}

// OnRetry registers an observer called after each failed attempt that
// will be retried.
func OnRetry(fn func(Attempt)) RetryOption {
	return func(o *retryOptions) { o.onRetry = fn }
}

// Retry calls fn up to attempts times, waiting b.Next() between failures.
// It returns nil on the first success, the unwrapped error of a Permanent
// failure, ctx.Err() if the context ends while waiting, or the last error.
func Retry(ctx context.Context, b *Backoff, attempts int, fn func(context.Context) error, opts ...RetryOption) error {
	var o retryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			b.Reset()
			return nil
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if i == attempts {
			break
		}

		delay := b.Next()
		if o.onRetry != nil {
			o.onRetry(Attempt{Number: i, Err: err, Delay: delay})
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
