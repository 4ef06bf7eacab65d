package http

import (
	"sync"
	"time"
)

// rateLimiter is a per-connection token bucket refilled at limit per minute.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
	now       func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{
		tokens:    float64(limit),
		capacity:  float64(limit),
		rate:      float64(limit) / time.Minute.Seconds(),
		lastCheck: time.Now(),
		now:       time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if elapsed := now.Sub(r.lastCheck).Seconds(); elapsed > 0 {
		r.tokens += elapsed * r.rate
		if r.tokens > r.capacity {
			r.tokens = r.capacity
		}
	}
	r.lastCheck = now

	if r.tokens < 1 {
		return false
	}
	r.tokens--
	return true
}
