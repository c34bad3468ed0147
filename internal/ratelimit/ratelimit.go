package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks and enforces a sliding-window limit per key
// (an e-mail address, a connection id)
type Limiter struct {
	limit   int
	window  time.Duration
	enabled bool

	// Request tracking
	hits map[string][]time.Time
	mu   sync.Mutex
	now  func() time.Time
}

// NewLimiter creates a limiter allowing limit requests per key in window
func NewLimiter(limit int, window time.Duration, enabled bool) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		enabled: enabled && limit > 0,
		hits:    make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow checks if a request for key is allowed and records it if so
func (l *Limiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	times := filterTimes(l.hits[key], now.Add(-l.window))
	if len(times) >= l.limit {
		l.hits[key] = times
		return false
	}
	l.hits[key] = append(times, now)
	return true
}

// Remaining returns how many requests key may still make in the current window
func (l *Limiter) Remaining(key string) int {
	if !l.enabled {
		return l.limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	times := filterTimes(l.hits[key], l.now().Add(-l.window))
	l.hits[key] = times
	return max(0, l.limit-len(times))
}

// Reset clears the tracked requests of key
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

// Prune drops keys whose requests all fell out of the window and returns
// how many were removed
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, times := range l.hits {
		times = filterTimes(times, cutoff)
		if len(times) == 0 {
			delete(l.hits, key)
			removed++
			continue
		}
		l.hits[key] = times
	}
	return removed
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// GetStats returns current limiter statistics
func (l *Limiter) GetStats() Stats {
	if !l.enabled {
		return Stats{Enabled: false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Enabled:       true,
		TrackedKeys:   len(l.hits),
		LimitPerKey:   l.limit,
		WindowSeconds: int(l.window.Seconds()),
	}
}

// Stats contains limiter statistics
type Stats struct {
	Enabled       bool `json:"enabled"`
	TrackedKeys   int  `json:"trackedKeys"`
	LimitPerKey   int  `json:"limitPerKey"`
	WindowSeconds int  `json:"windowSeconds"`
}
