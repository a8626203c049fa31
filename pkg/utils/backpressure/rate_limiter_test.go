package backpressure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucketBurstAndRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tb := newTokenBucketLimiter(2, 4, clock.now)

	assert.True(t, tb.AllowN(3))
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	clock.advance(250 * time.Millisecond)
	assert.False(t, tb.Allow(), "half a token is not enough")

	clock.advance(250 * time.Millisecond)
	assert.True(t, tb.Allow())

	clock.advance(time.Hour)
	assert.Equal(t, 4, tb.TokensRemaining())
}

func TestTokenBucketDefaults(t *testing.T) {
	tb := NewTokenBucketLimiter(0, 0)
	assert.Equal(t, 1.0, tb.Limit())
	assert.Equal(t, 1, tb.Burst())
}

func TestTokenBucketWaitN(t *testing.T) {
	tb := NewTokenBucketLimiter(1000, 2)

	assert.ErrorIs(t, tb.WaitN(context.Background(), 3), ErrRequestTooLarge)
	assert.NoError(t, tb.WaitN(context.Background(), 2))
	assert.NoError(t, tb.WaitN(context.Background(), 1))

	slow := NewTokenBucketLimiter(0.001, 1)
	slow.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, slow.WaitN(ctx, 1), context.DeadlineExceeded)
}

func TestRateLimiterManagerKeys(t *testing.T) {
	rm := NewRateLimiterManager(1, 1)

	a := rm.Get("10.0.0.1")
	assert.Same(t, a, rm.Get("10.0.0.1"))
	assert.True(t, a.Allow())
	assert.False(t, rm.Get("10.0.0.1").Allow())
	assert.True(t, rm.Get("10.0.0.2").Allow())
	assert.NotSame(t, a, rm.Get("10.0.0.2"))
}
