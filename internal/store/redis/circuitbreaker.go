package redis

import (
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // normal operation, publishes pass through
	StateOpen     State = 1 // circuit tripped, publishes rejected immediately
	StateHalfOpen State = 2 // probing, one publish allowed through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker keeps a downed Redis from stalling signal delivery: a
// scan pass must never block on publish retries. After tripAfter
// consecutive publish failures the breaker opens and rejects calls for
// probeAfter, then lets a single probe through: success closes the
// breaker, failure reopens it.
type CircuitBreaker struct {
	mu             sync.Mutex
	state          State
	consecFailures int
	tripAfter      int
	probeAfter     time.Duration
	lastFailureAt  time.Time

	OnStateChange func(from, to State) // called on state transitions
}

// NewCircuitBreaker creates a circuit breaker.
// maxFailures: consecutive failures before opening (e.g. 5)
// resetTimeout: time to wait before the half-open probe (e.g. 10s)
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		tripAfter:  maxFailures,
		probeAfter: resetTimeout,
		state:      StateClosed,
	}
}

// Execute runs fn through the circuit breaker.
// Returns ErrCircuitOpen if the breaker is open and the probe window
// hasn't elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureAt) > cb.probeAfter {
			cb.transition(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}

	case StateHalfOpen:
		// the mutex serializes probes, let this one through
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecFailures++
		cb.lastFailureAt = time.Now()

		if cb.state == StateHalfOpen || cb.consecFailures >= cb.tripAfter {
			cb.transition(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.consecFailures = 0
	return nil
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.consecFailures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open")
