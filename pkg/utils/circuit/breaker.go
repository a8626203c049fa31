package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	MaxFailures   int                               // Consecutive failures before opening
	Timeout       time.Duration                     // Time spent open before a trial request
	MaxRequests   int                               // Trial requests allowed while half-open
	IsSuccessful  func(error) bool                  // Decides whether an error counts as a failure
	OnStateChange func(name string, from, to State) // Callback for state changes
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     10 * time.Second,
		MaxRequests: 1,
		IsSuccessful: func(err error) bool {
			// the caller giving up is not a fault of the guarded dependency
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to State) {},
	}
}

// CircuitBreaker stops calling a failing dependency for Timeout after
// MaxFailures consecutive failures, then lets MaxRequests trial calls through
type CircuitBreaker struct {
	name            string
	config          Config
	state           State
	failures        int
	requests        int
	lastFailureTime time.Time
	now             func() time.Time
	mutex           sync.Mutex
	log             *logger.Logger
}

func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	defaults := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.IsSuccessful == nil {
		config.IsSuccessful = defaults.IsSuccessful
	}
	if config.OnStateChange == nil {
		config.OnStateChange = defaults.OnStateChange
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
		log:    logger.GetLogger(fmt.Sprintf("circuit.%s", name)),
	}

	cb.log.Debugf("Circuit breaker '%s' initialized in CLOSED state", name)
	return cb
}

// Execute runs fn unless the breaker is open, in which case it returns
// ErrCircuitBreakerOpen without calling fn
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterRequest(false)
			panic(r)
		}
	}()

	err := fn(ctx)
	cb.afterRequest(cb.config.IsSuccessful(err))
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		cb.toHalfOpen()
		cb.requests++
		return nil
	case StateHalfOpen:
		if cb.requests >= cb.config.MaxRequests {
			return ErrTooManyRequests
		}
		cb.requests++
		return nil
	default:
		return ErrCircuitBreakerOpen
	}
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.toClosed()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toClosed() {
	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.requests = 0
	cb.log.Infof("Circuit breaker '%s' transitioned from %s to CLOSED", cb.name, oldState)
	cb.config.OnStateChange(cb.name, oldState, StateClosed)
}

func (cb *CircuitBreaker) toOpen() {
	oldState := cb.state
	cb.state = StateOpen
	cb.requests = 0
	cb.log.Warnf("Circuit breaker '%s' transitioned from %s to OPEN", cb.name, oldState)
	cb.config.OnStateChange(cb.name, oldState, StateOpen)
}

func (cb *CircuitBreaker) toHalfOpen() {
	oldState := cb.state
	cb.state = StateHalfOpen
	cb.requests = 0
	cb.log.Infof("Circuit breaker '%s' transitioned from %s to HALF_OPEN", cb.name, oldState)
	cb.config.OnStateChange(cb.name, oldState, StateHalfOpen)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// RetryAfter is how long an open breaker keeps rejecting calls; zero otherwise
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state != StateOpen {
		return 0
	}
	if wait := cb.config.Timeout - cb.now().Sub(cb.lastFailureTime); wait > 0 {
		return wait
	}
	return 0
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests")
)
