package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"timeout", errors.New("request timeout"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"rate limit", errors.New("429 too many requests"), true},
		{"server error", errors.New("API error 503: service unavailable"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unauthorized", errors.New("API error 401: invalid api key"), false},
		{"bad request", errors.New("API error 400: bad request"), false},
		{"not found", errors.New("API error 404: model not found"), false},
		{"cancellation", context.Canceled, false},
		{"unknown", errors.New("something odd happened"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	}, Config{})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	}, Config{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("timeout")
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, 3, calls)
}

func TestDoAbortsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("API error 401: invalid api key")
	}, Config{MaxAttempts: 5, InitialBackoff: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors must not be retried")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, func() (string, error) {
		calls++
		cancel()
		return "", errors.New("timeout")
	}, Config{MaxAttempts: 5, InitialBackoff: time.Second})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation between attempts stops the loop")
}

func TestCalculateBackoff(t *testing.T) {
	initial := 100 * time.Millisecond
	max := 500 * time.Millisecond

	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, initial, max))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(1, initial, max))
	assert.Equal(t, 400*time.Millisecond, calculateBackoff(2, initial, max))
	assert.Equal(t, max, calculateBackoff(3, initial, max), "backoff is capped")
	assert.Equal(t, max, calculateBackoff(10, initial, max))
}
