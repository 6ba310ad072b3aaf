package ops

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

// CircuitBreaker stops the tracker from writing to a store that keeps
// failing. After the cooldown a single probe write decides whether to close
// again or stay open for another cooldown.
type CircuitBreaker struct {
	mu  sync.Mutex
	now func() time.Time

	threshold int
	cooldown  time.Duration

	state       breakerState
	consecutive int
	reopenAt    time.Time
}

// NewCircuitBreaker opens after threshold consecutive failures. Non-positive
// arguments default to 5 failures and one minute.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{now: time.Now, threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a write may be attempted. While a probe is in flight
// every other write is refused.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if cb.now().Before(cb.reopenAt) {
			return false
		}
		cb.state = breakerProbing
		return true
	}
	return false
}

func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.consecutive = 0
}

// Failure records a failed write and reports whether the breaker is open.
// A failed probe reopens it at once.
func (cb *CircuitBreaker) Failure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutive++
	if cb.state == breakerProbing || cb.consecutive >= cb.threshold {
		cb.state = breakerOpen
		cb.reopenAt = cb.now().Add(cb.cooldown)
	}
	return cb.state == breakerOpen
}

// Open is true until a write succeeds again.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state != breakerClosed
}
