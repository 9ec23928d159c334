package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{})

	expected := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, exp := range expected {
		assert.Equal(t, exp, b.Next(), "attempt %d", i)
	}
	assert.Equal(t, len(expected), b.Attempts())

	b.Reset()
	assert.Equal(t, InitialBackoff, b.Current())
	assert.Zero(t, b.Attempts())
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 50; i++ {
		base := b.Current()
		d := b.Next()
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+time.Duration(float64(base)*JitterFactor))
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond})
	calls := 0
	var observed []Attempt

	err := Retry(context.Background(), b, 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("refused")
		}
		return nil
	}, OnRetry(func(a Attempt) { observed = append(observed, a) }))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, observed, 2)
	assert.Equal(t, 1, observed[0].Number)
	assert.EqualError(t, observed[1].Err, "refused")
	assert.Zero(t, b.Attempts(), "backoff resets on success")
}

func TestRetryReturnsLastError(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond})
	calls := 0
	err := Retry(context.Background(), b, 3, func(context.Context) error {
		calls++
		return errors.New("refused")
	})
	assert.EqualError(t, err, "refused")
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	cause := errors.New("no such device")
	calls := 0
	err := Retry(context.Background(), NewBackoff(), 5, func(context.Context) error {
		calls++
		return &Permanent{Err: cause}
	})
	assert.Same(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})

	err := Retry(ctx, b, 3, func(context.Context) error {
		cancel()
		return errors.New("refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
