package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing() error { return errors.New("upstream down") }

func succeeding() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Hour,
	})

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Call(failing))
	}
	assert.Equal(t, StateOpen, cb.State())

	// Open breaker fails fast without invoking the function
	invoked := false
	err := cb.Call(func() error {
		invoked = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, invoked)

	var cbErr *CircuitBreakerError
	assert.True(t, errors.As(err, &cbErr))
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	assert.Error(t, cb.Call(failing))
	assert.Error(t, cb.Call(failing))
	assert.NoError(t, cb.Call(succeeding))
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  5 * time.Millisecond,
		SuccessThreshold: 2,
	})

	require.Error(t, cb.Call(failing))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(10 * time.Millisecond)

	// First probe succeeds, breaker goes half-open
	assert.NoError(t, cb.Call(succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())

	// Second success closes it
	assert.NoError(t, cb.Call(succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailureInHalfOpenReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  5 * time.Millisecond,
		SuccessThreshold: 2,
	})

	require.Error(t, cb.Call(failing))
	time.Sleep(10 * time.Millisecond)

	assert.Error(t, cb.Call(failing))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	require.Error(t, cb.Call(failing))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
	assert.NoError(t, cb.Call(succeeding))
}

func TestCircuitBreakerRegistry(t *testing.T) {
	registry := NewCircuitBreakerRegistry()

	first := registry.GetOrCreate("jira", CircuitBreakerConfig{})
	second := registry.GetOrCreate("jira", CircuitBreakerConfig{})
	assert.Same(t, first, second)

	_, ok := registry.Get("sonar")
	assert.False(t, ok)

	registry.GetOrCreate("sonar", CircuitBreakerConfig{FailureThreshold: 1})
	stats := registry.GetStats()
	assert.Len(t, stats, 2)
	assert.Contains(t, stats, "jira")
	assert.Contains(t, stats, "sonar")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
