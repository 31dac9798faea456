package main

import (
	"sync"

	"golang.org/x/time/rate"
)

// sessionLimiter applies a token bucket per session so one chatty client
// cannot monopolize the command path.
type sessionLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// newSessionLimiter allows r commands per second with burst b per session.
func newSessionLimiter(r float64, b int) *sessionLimiter {
	return &sessionLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Allow reports whether the session may issue another command now.
func (l *sessionLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[sessionID]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[sessionID] = limiter
	}
	return limiter.Allow()
}

// Forget drops the bucket for a disconnected session.
func (l *sessionLimiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, sessionID)
}
