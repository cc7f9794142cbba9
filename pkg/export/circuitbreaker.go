// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package export

import (
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Blocking requests
	CircuitHalfOpen                     // Testing recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// halfOpenSuccesses is how many consecutive successes a half-open
// circuit needs before it fully closes. One lucky export is not proof
// the collector has recovered.
const halfOpenSuccesses = 2

// CircuitBreaker guards the exporters against a dead collector: after
// enough consecutive failures it stops letting exports through until a
// cool-down has passed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitState
	failures         int
	probeSuccesses   int
	failureThreshold int
	resetTimeout     time.Duration
	trippedAt        time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after
// failureThreshold consecutive failures and starts probing again after
// resetTimeout.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Allow reports whether a request may proceed. An open circuit past its
// cool-down flips to half-open and lets a probe through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.trippedAt) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.probeSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0

	if cb.state == CircuitHalfOpen {
		cb.probeSuccesses++
		if cb.probeSuccesses >= halfOpenSuccesses {
			cb.state = CircuitClosed
		}
		return
	}
	cb.state = CircuitClosed
}

// RecordFailure records a failed operation. A failure while half-open
// trips the circuit again immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.trippedAt = time.Now()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		return
	}

	if cb.failures >= cb.failureThreshold {
		cb.state = CircuitOpen
	}
}

// State returns the current circuit state without side effects.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.trippedAt) >= cb.resetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// FailureCount returns the current consecutive failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
