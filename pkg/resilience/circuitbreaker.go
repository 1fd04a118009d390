// Package resilience provides the circuit breaker wrapped around
// outbound generative model calls.
package resilience

import (
	"errors"
	"sync"
	"time"

	"companion-engine/backend/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker is rejecting requests.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreakerState is one of closed, open or half-open.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig tunes one breaker instance.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint // consecutive failures before opening
	SuccessThreshold uint // half-open successes before closing
	RetryTimeout     time.Duration
}

// DefaultCircuitBreakerConfig opens after 5 failures and probes again
// after a minute.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     60 * time.Second,
	}
}

// CircuitBreaker short-circuits calls to a failing dependency. Closed
// passes everything through; open rejects until the retry timeout;
// half-open admits a limited probe stream and closes again once
// enough probes succeed.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	log *logger.Logger

	mutex           sync.RWMutex
	state           CircuitBreakerState
	failures        uint
	probeSuccesses  uint
	nextAttemptTime time.Time

	totalRequests  uint64
	totalFailures  uint64
	totalSuccesses uint64
	timesOpened    uint64
}

func NewCircuitBreaker(cfg CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, log: log, state: StateClosed}
}

// Execute runs fn unless the breaker is rejecting traffic, recording
// the outcome either way.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		cb.log.Warn("circuit breaker preventing request", "name", cb.cfg.Name, "state", string(cb.GetState()))
		return ErrCircuitOpen
	}

	cb.mutex.Lock()
	cb.totalRequests++
	cb.mutex.Unlock()

	start := time.Now()
	if err := fn(); err != nil {
		cb.recordFailure()
		cb.log.Warn("circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", time.Since(start).String(),
		)
		return err
	}

	cb.recordSuccess()
	return nil
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// GetMetrics snapshots the breaker's counters.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return map[string]interface{}{
		"name":            cb.cfg.Name,
		"state":           string(cb.state),
		"total_requests":  cb.totalRequests,
		"total_failures":  cb.totalFailures,
		"total_successes": cb.totalSuccesses,
		"times_opened":    cb.timesOpened,
	}
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Now().After(cb.nextAttemptTime) {
			cb.state = StateHalfOpen
			cb.probeSuccesses = 0
			cb.log.Info("circuit breaker half-open", "name", cb.cfg.Name)
			return true
		}
		return false
	case StateHalfOpen:
		return cb.probeSuccesses < cb.cfg.SuccessThreshold
	}
	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalSuccesses++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.log.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalFailures++
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

// open transitions to the open state. Caller holds the lock.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.timesOpened++
	cb.nextAttemptTime = time.Now().Add(cb.cfg.RetryTimeout)
	cb.log.Info("circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failures,
		"nextAttempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}
