package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker down")

func newTestBreaker(clock *time.Time, transitions *[]State) *CircuitBreaker {
	cb := NewCircuitBreaker("test", Config{
		MaxFailures: 2,
		Timeout:     time.Second,
		OnStateChange: func(_ string, _, to State) {
			*transitions = append(*transitions, to)
		},
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func fail(context.Context) error    { return errBroker }
func succeed(context.Context) error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []State
	cb := newTestBreaker(&clock, &transitions)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State(), "a success resets the failure count")

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "OPEN", cb.State().String())
	assert.Equal(t, time.Second, cb.RetryAfter())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)

	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []State
	cb := newTestBreaker(&clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	// a failed trial reopens
	clock = clock.Add(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())

	// a successful trial closes
	clock = clock.Add(time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.RetryAfter())

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []State
	cb := newTestBreaker(&clock, &transitions)

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Empty(t, transitions)
}
