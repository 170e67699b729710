package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), DefaultPolicy(), nil, func() (int, error) {
		attempts++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, attempts)
}

func TestDo_RecoversAfterFailures(t *testing.T) {
	policy := Policy{MaxTries: 4, InitialDelay: time.Millisecond, Multiplier: 2.0}

	attempts := 0
	got, err := Do(context.Background(), policy, nil, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAllTries(t *testing.T) {
	policy := Policy{MaxTries: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}

	lastErr := errors.New("always failing")
	attempts := 0
	start := time.Now()
	_, err := Do(context.Background(), policy, nil, func() (int, error) {
		attempts++
		return 0, lastErr
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, lastErr)
	// Tries, not retries: the operation runs exactly MaxTries times.
	assert.Equal(t, 3, attempts)
	// Deterministic schedule d, d*b: 1ms + 2ms between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 3*time.Millisecond)
}

func TestDo_PermanentStopsRetrying(t *testing.T) {
	policy := Policy{MaxTries: 5, InitialDelay: time.Millisecond, Multiplier: 2.0}

	attempts := 0
	_, err := Do(context.Background(), policy, nil, func() (int, error) {
		attempts++
		return 0, Permanent(errors.New("bad request"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellation(t *testing.T) {
	policy := Policy{MaxTries: 10, InitialDelay: 50 * time.Millisecond, Multiplier: 2.0}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, policy, nil, func() (int, error) {
		attempts++
		return 0, errors.New("transient")
	})

	require.Error(t, err)
	// Cancelled during the first backoff sleep.
	assert.Equal(t, 1, attempts)
}
