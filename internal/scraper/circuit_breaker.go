package scraper

import (
	"net/http"
	"sync"
	"time"

	"car-market-tracker/internal/logging"
)

// CircuitBreaker stops hammering the site once it starts refusing requests.
// Only blocking responses (429, 403, 503) count; a 404 for a deleted
// advertisement is an ordinary outcome.
type CircuitBreaker struct {
	threshold    int
	resetTimeout time.Duration

	consecutiveBlocks int
	totalBlocks       int
	isOpen            bool
	openedAt          time.Time

	mutex sync.Mutex
	now   func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// IsBlockingStatus reports whether a status code means the site is throttling us.
func IsBlockingStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusForbidden, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// RecordSuccess records a completed request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.consecutiveBlocks = 0
}

// RecordFailure records a failed request. Non-blocking statuses are ignored.
func (cb *CircuitBreaker) RecordFailure(statusCode int) {
	if !IsBlockingStatus(statusCode) {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveBlocks++
	cb.totalBlocks++
	if !cb.isOpen && cb.consecutiveBlocks >= cb.threshold {
		cb.isOpen = true
		cb.openedAt = cb.now()
		logging.Warnf("[CircuitBreaker] open after %d consecutive %d responses, pausing for %v",
			cb.consecutiveBlocks, statusCode, cb.resetTimeout)
	}
}

// CanProceed checks if requests are allowed
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}

	if cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		logging.Infof("[CircuitBreaker] half-open after %v", cb.resetTimeout)
		cb.isOpen = false
		cb.consecutiveBlocks = 0
		return true
	}

	return false
}

// GetStatus returns current circuit breaker status
func (cb *CircuitBreaker) GetStatus() (isOpen bool, consecutive int, total int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.isOpen, cb.consecutiveBlocks, cb.totalBlocks
}
