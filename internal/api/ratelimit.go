package api

import (
	"sync"
	"time"
)

// RateLimiter implements a sliding-window rate limiter keyed by client
// address. The key is the bare IP, so clients cannot bypass throttling
// by rotating ports or sessions.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
// and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	go rl.evictLoop()
	return rl
}

// Allow reports whether a request from key is within the limit, recording
// it when it is.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := pruneExpired(rl.requests[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// evictLoop periodically drops keys whose requests have all aged out, so
// the map does not grow with every client address ever seen.
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			if fresh := pruneExpired(times, cutoff); len(fresh) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = fresh
			}
		}
		rl.mu.Unlock()
	}
}

// pruneExpired keeps only timestamps newer than cutoff.
func pruneExpired(times []time.Time, cutoff time.Time) []time.Time {
	var fresh []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
