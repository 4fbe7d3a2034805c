package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned when the daily request budget is used up.
var ErrBudgetExhausted = errors.New("daily request budget exhausted")

// RateLimiter paces outgoing requests and enforces an optional daily budget
type RateLimiter struct {
	enabled        bool
	pace           *rate.Limiter
	requestsPerDay int

	dayWindow []time.Time
	mu        sync.Mutex
	now       func() time.Time
}

// NewRateLimiter creates a limiter. requestsPerSecond <= 0 disables pacing,
// requestsPerDay <= 0 disables the budget.
func NewRateLimiter(requestsPerSecond float64, burst, requestsPerDay int, enabled bool) *RateLimiter {
	rl := &RateLimiter{
		enabled:        enabled,
		requestsPerDay: requestsPerDay,
		dayWindow:      make([]time.Time, 0),
		now:            time.Now,
	}
	if requestsPerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		rl.pace = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return rl
}

// Wait blocks until a request may be sent.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || !rl.enabled {
		return nil
	}
	if err := rl.reserveBudget(); err != nil {
		return err
	}
	if rl.pace != nil {
		return rl.pace.Wait(ctx)
	}
	return nil
}

func (rl *RateLimiter) reserveBudget() error {
	if rl.requestsPerDay <= 0 {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.dayWindow = filterTimes(rl.dayWindow, now.Add(-24*time.Hour))
	if len(rl.dayWindow) >= rl.requestsPerDay {
		return ErrBudgetExhausted
	}
	rl.dayWindow = append(rl.dayWindow, now)
	return nil
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	RequestsLastDay   int     `json:"requests_last_day"`
	LimitPerDay       int     `json:"limit_per_day"`
	RemainingThisDay  int     `json:"remaining_this_day"`
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if rl == nil || !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.dayWindow = filterTimes(rl.dayWindow, rl.now().Add(-24*time.Hour))

	stats := Stats{
		Enabled:         true,
		RequestsLastDay: len(rl.dayWindow),
		LimitPerDay:     rl.requestsPerDay,
	}
	if rl.pace != nil {
		stats.RequestsPerSecond = float64(rl.pace.Limit())
	}
	if rl.requestsPerDay > 0 {
		stats.RemainingThisDay = max(0, rl.requestsPerDay-len(rl.dayWindow))
	}
	return stats
}

// Reset clears all tracked requests
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.dayWindow = make([]time.Time, 0)
}
