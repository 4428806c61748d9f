package indexer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
)

// CircuitBreaker stops hammering the indexing API once it is clearly down.
//
//   - closed: calls pass; consecutive failures are counted, threshold trips to open.
//   - open: calls fail fast with config.ErrCircuitOpen until the cooldown elapses.
//   - half_open: a limited number of probe calls pass; success closes, failure reopens.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            string
	consecutiveFails int
	threshold        int
	cooldown         time.Duration
	openedAt         time.Time
	halfOpenAllowed  int
	halfOpenCount    int
}

// BreakerSnapshot is a point-in-time view used by health reporting.
type BreakerSnapshot struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		state:           config.CircuitClosed,
		threshold:       threshold,
		cooldown:        cooldown,
		halfOpenAllowed: config.CircuitBreakerHalfOpenMax,
	}
}

// Acquire returns nil when a call may proceed, or an error wrapping config.ErrCircuitOpen.
func (cb *CircuitBreaker) Acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitClosed:
		return nil

	case config.CircuitOpen:
		if time.Since(cb.openedAt) >= cb.cooldown {
			slog.Debug("circuit breaker half-open",
				"upstream", cb.name,
				"cooldown", cb.cooldown,
			)
			cb.state = config.CircuitHalfOpen
			cb.halfOpenCount = 1
			return nil
		}

	case config.CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenAllowed {
			cb.halfOpenCount++
			return nil
		}
	}

	retryIn := cb.cooldown - time.Since(cb.openedAt)
	if retryIn < 0 {
		retryIn = 0
	}
	return fmt.Errorf("%s: %w (retry in %s)", cb.name, config.ErrCircuitOpen, retryIn.Round(time.Second))
}

// Record feeds the outcome of a call that Acquire admitted.
// Only upstream failures count: pass countsAsFailure=false for errors caused by the caller
// (cancelled context, invalid input). Those leave state and counters as they were, except
// that a half-open probe slot is handed back.
func (cb *CircuitBreaker) Record(err error, countsAsFailure bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && !countsAsFailure {
		if cb.state == config.CircuitHalfOpen && cb.halfOpenCount > 0 {
			cb.halfOpenCount--
		}
		return
	}

	if err == nil {
		if cb.state != config.CircuitClosed {
			slog.Info("circuit breaker closed",
				"upstream", cb.name,
				"previousState", cb.state,
			)
		}
		cb.consecutiveFails = 0
		cb.state = config.CircuitClosed
		cb.halfOpenCount = 0
		return
	}

	cb.consecutiveFails++

	if cb.state == config.CircuitHalfOpen || cb.consecutiveFails >= cb.threshold {
		if cb.state != config.CircuitOpen {
			slog.Warn("circuit breaker opened",
				"upstream", cb.name,
				"consecutiveFails", cb.consecutiveFails,
				"threshold", cb.threshold,
				"error", err,
			)
		}
		cb.state = config.CircuitOpen
		cb.openedAt = time.Now()
		cb.halfOpenCount = 0
	}
}

// Snapshot returns the current state.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Name:                cb.name,
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFails,
	}
}
