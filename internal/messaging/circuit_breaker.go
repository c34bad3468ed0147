package messaging

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker stops calling a provider that keeps failing
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	failures            int
	totalRequests       int
	consecutiveFailures int
	isOpen              bool
	lastFailureTime     time.Time

	mutex sync.Mutex
	now   func() time.Time
}

// NewCircuitBreaker opens after failureThreshold consecutive failures and
// half-opens again after resetTimeout
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalRequests++
	cb.consecutiveFailures = 0
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.consecutiveFailures++
	cb.totalRequests++
	cb.lastFailureTime = cb.now()

	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.isOpen = true
		zap.L().Warn("circuit breaker open",
			zap.String("breaker", cb.name),
			zap.Int("consecutive_failures", cb.consecutiveFailures),
			zap.Duration("retry_after", cb.resetTimeout))
		return
	}

	// Failure rate check after 20 requests
	if cb.totalRequests >= 20 {
		failureRate := float64(cb.failures) / float64(cb.totalRequests)
		if failureRate >= 0.40 {
			cb.isOpen = true
			zap.L().Warn("circuit breaker open",
				zap.String("breaker", cb.name),
				zap.Float64("failure_rate", failureRate),
				zap.Duration("retry_after", cb.resetTimeout))
		}
	}
}

// CanProceed checks if calls are allowed
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}

	if cb.now().Sub(cb.lastFailureTime) > cb.resetTimeout {
		zap.L().Info("circuit breaker half-open", zap.String("breaker", cb.name))
		cb.isOpen = false
		cb.failures = 0
		cb.totalRequests = 0
		cb.consecutiveFailures = 0
		return true
	}

	return false
}

// Execute runs fn unless the breaker is open and records its outcome
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.CanProceed() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetStatus returns current circuit breaker status
func (cb *CircuitBreaker) GetStatus() (isOpen bool, failures int, total int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.isOpen, cb.failures, cb.totalRequests
}
