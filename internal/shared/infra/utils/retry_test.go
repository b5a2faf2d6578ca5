package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})

	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 5, time.Hour, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}

	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 5*time.Second, b.Delay(3))
}

func TestPollUntil(t *testing.T) {
	t.Run("condition eventually holds", func(t *testing.T) {
		n := 0
		err := PollUntil(context.Background(), Backoff{Attempts: 4, Base: time.Millisecond}, func(context.Context) (bool, error) {
			n++
			return n == 3, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		n := 0
		err := PollUntil(context.Background(), Backoff{Attempts: 2, Base: time.Millisecond}, func(context.Context) (bool, error) {
			n++
			return false, nil
		})
		assert.ErrorIs(t, err, ErrConditionNotMet)
		assert.Equal(t, 2, n)
	})

	t.Run("last error is surfaced", func(t *testing.T) {
		boom := errors.New("count failed")
		err := PollUntil(context.Background(), Backoff{Attempts: 2, Base: time.Millisecond}, func(context.Context) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}
