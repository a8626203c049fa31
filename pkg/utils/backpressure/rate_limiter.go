package backpressure

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

type RateLimiter interface {
	Allow() bool
	AllowN(n int) bool
	WaitN(ctx context.Context, n int) error
	Limit() float64
	Burst() int
	TokensRemaining() int
}

// TokenBucketLimiter refills rate tokens per second up to burst
type TokenBucketLimiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mutex      sync.Mutex
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	return newTokenBucketLimiter(rate, burst, time.Now)
}

func newTokenBucketLimiter(rate float64, burst int, now func() time.Time) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1.0
	}
	if burst <= 0 {
		burst = 1
	}

	return &TokenBucketLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: now(),
		now:        now,
	}
}

// Allow checks if a single operation is allowed
func (tb *TokenBucketLimiter) Allow() bool {
	return tb.AllowN(1)
}

// AllowN takes n tokens when they are available
func (tb *TokenBucketLimiter) AllowN(n int) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refillTokens()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// WaitN waits until n operations are allowed
func (tb *TokenBucketLimiter) WaitN(ctx context.Context, n int) error {
	if n > tb.burst {
		return ErrRequestTooLarge
	}

	for {
		if tb.AllowN(n) {
			return nil
		}

		select {
		case <-time.After(tb.waitTime(n)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// refillTokens adds tokens for the time elapsed since the last call; mutex held
func (tb *TokenBucketLimiter) refillTokens() {
	now := tb.now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(float64(tb.burst), tb.tokens+elapsed.Seconds()*tb.rate)
	tb.lastUpdate = now
}

// waitTime estimates how long until n tokens are available
func (tb *TokenBucketLimiter) waitTime(n int) time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	missing := float64(n) - tb.tokens
	wait := time.Duration(missing / tb.rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// Limit returns the refill rate per second
func (tb *TokenBucketLimiter) Limit() float64 {
	return tb.rate
}

// Burst returns the burst capacity
func (tb *TokenBucketLimiter) Burst() int {
	return tb.burst
}

// TokensRemaining returns the number of whole tokens remaining
func (tb *TokenBucketLimiter) TokensRemaining() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refillTokens()
	return int(tb.tokens)
}

// RateLimiterManager keeps one token bucket per key, e.g. per client address
type RateLimiterManager struct {
	rate     float64
	burst    int
	limiters map[string]RateLimiter
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewRateLimiterManager creates a manager whose buckets share rate and burst
func NewRateLimiterManager(rate float64, burst int) *RateLimiterManager {
	return &RateLimiterManager{
		rate:     rate,
		burst:    burst,
		limiters: make(map[string]RateLimiter),
		log:      logger.GetLogger("rate_limiter.manager"),
	}
}

// Get gets or creates the limiter for key
func (rm *RateLimiterManager) Get(key string) RateLimiter {
	rm.mutex.RLock()
	limiter, exists := rm.limiters[key]
	rm.mutex.RUnlock()

	if exists {
		return limiter
	}

	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	// Double-check locking
	if limiter, exists := rm.limiters[key]; exists {
		return limiter
	}

	limiter = NewTokenBucketLimiter(rm.rate, rm.burst)
	rm.limiters[key] = limiter
	rm.log.Debugf("Created token bucket rate limiter '%s'", key)
	return limiter
}

// Rate limiter errors
var (
	ErrRequestTooLarge = &RateLimiterError{"request size exceeds burst capacity"}
)

// RateLimiterError represents a rate limiter error
type RateLimiterError struct {
	message string
}

func (e *RateLimiterError) Error() string {
	return e.message
}
