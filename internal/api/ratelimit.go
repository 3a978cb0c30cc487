package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// voterLimiter implements per-voter rate limiting so one participant cannot
// flood a tally
type voterLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newVoterLimiter(perSecond float64, burst int) *voterLimiter {
	if burst <= 0 {
		burst = 5
	}
	return &voterLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow checks whether the voter may cast right now, without waiting
func (l *voterLimiter) Allow(voterID string) bool {
	return l.get(voterID).Allow()
}

func (l *voterLimiter) get(voterID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[voterID]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[voterID]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(l.rate, l.burst)
	l.limiters[voterID] = limiter
	return limiter
}
