package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: func(error) bool { return true },
	}
}

func TestRetryWithConfig(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := RetryWithConfig(context.Background(), fastConfig(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := RetryWithConfig(context.Background(), fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.NewToolError("jira", assert.AnError)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := RetryWithConfig(context.Background(), fastConfig(), func() error {
			calls++
			return assert.AnError
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		config := fastConfig()
		config.RetryableErrors = func(error) bool { return false }

		calls := 0
		err := RetryWithConfig(context.Background(), config, func() error {
			calls++
			return assert.AnError
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryWithConfig(ctx, fastConfig(), func() error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(config, 0))
	assert.Equal(t, 200*time.Millisecond, calculateDelay(config, 1))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(config, 2))
	assert.Equal(t, time.Second, calculateDelay(config, 10), "delay is capped at MaxDelay")
}

func TestCalculateDelay_JitterStaysBounded(t *testing.T) {
	config := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}

	for attempt := 0; attempt < 4; attempt++ {
		base := time.Duration(100*(1<<attempt)) * time.Millisecond
		delay := calculateDelay(config, attempt)
		assert.GreaterOrEqual(t, delay, base)
		assert.LessOrEqual(t, delay, base+base/10+time.Nanosecond)
	}
}

func TestCalculateDelay_TinyDelayDoesNotPanic(t *testing.T) {
	config := RetryConfig{
		InitialDelay:  time.Nanosecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}

	assert.NotPanics(t, func() {
		calculateDelay(config, 0)
	})
}

func TestRetryHTTP(t *testing.T) {
	t.Run("retries retryable status codes", func(t *testing.T) {
		var calls int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt64(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		resp, err := RetryHTTP(context.Background(), fastConfig(), func() (*http.Response, error) {
			return http.Get(server.URL)
		})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
	})

	t.Run("non-retryable status returns immediately", func(t *testing.T) {
		var calls int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		resp, err := RetryHTTP(context.Background(), fastConfig(), func() (*http.Response, error) {
			return http.Get(server.URL)
		})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	})
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	retryable := []int{408, 429, 500, 502, 503, 504}
	for _, code := range retryable {
		assert.True(t, isRetryableHTTPStatus(code), "status %d", code)
	}

	notRetryable := []int{200, 201, 301, 400, 401, 403, 404}
	for _, code := range notRetryable {
		assert.False(t, isRetryableHTTPStatus(code), "status %d", code)
	}
}
