package upstream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/nanas/internal/config"
)

// CircuitBreaker stops calling a collaborator that keeps failing. After
// threshold consecutive failures it opens; once cooldown has passed it lets
// exactly one probe through, and the probe's outcome closes or reopens it.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    string
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     config.CircuitClosed,
	}
}

// Allow reports whether a call may go through. In the open state the first
// caller after the cooldown becomes the half-open probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = config.CircuitHalfOpen
		cb.probing = true
		slog.Debug("circuit breaker probing", "upstream", cb.name, "failures", cb.failures)
		return true
	case config.CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != config.CircuitClosed {
		slog.Info("circuit breaker closed", "upstream", cb.name, "previousState", cb.state)
	}
	cb.state = config.CircuitClosed
	cb.failures = 0
	cb.probing = false
}

// RecordFailure counts a failure. A failed probe reopens the circuit at once.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state != config.CircuitHalfOpen && cb.failures < cb.threshold {
		return
	}

	if cb.state != config.CircuitOpen {
		slog.Warn("circuit breaker opened",
			"upstream", cb.name,
			"previousState", cb.state,
			"failures", cb.failures,
			"threshold", cb.threshold,
		)
	}
	cb.state = config.CircuitOpen
	cb.openedAt = cb.now()
	cb.probing = false
}

// Release ends a probe that finished without an outcome. A half-open circuit
// returns to open with its original openedAt, so the next Allow probes again.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != config.CircuitHalfOpen || !cb.probing {
		return
	}
	cb.state = config.CircuitOpen
	cb.probing = false
	slog.Debug("circuit breaker probe released", "upstream", cb.name)
}

// State returns closed, open or half_open.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the failures counted since the last success.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
