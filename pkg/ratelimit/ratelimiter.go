package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	limiters map[string]*entry
	lock     sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows max requests per window for each key, refilling evenly
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(float64(max) / window.Seconds()),
		burst:    max,
		idle:     window,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.lock.Lock()
	defer rl.lock.Unlock()

	now := time.Now()
	e, ok := rl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Cleanup forgets keys that have been idle for a full window
func (rl *RateLimiter) Cleanup() {
	rl.lock.Lock()
	defer rl.lock.Unlock()

	cutoff := time.Now().Add(-rl.idle)
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}
