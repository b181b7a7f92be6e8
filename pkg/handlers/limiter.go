package handlers

import (
	"sync"

	"golang.org/x/time/rate"
)

// KeyLimiter keeps one token bucket per API key
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[uint]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewKeyLimiter allows rps requests per second per key with the given burst.
// A non-positive rps disables limiting.
func NewKeyLimiter(rps float64, burst int) *KeyLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyLimiter{
		limiters: make(map[uint]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether the key may make a request now
func (l *KeyLimiter) Allow(keyID uint) bool {
	if l == nil || l.rps <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[keyID]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[keyID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// Forget drops the bucket for a revoked key
func (l *KeyLimiter) Forget(keyID uint) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.limiters, keyID)
	l.mu.Unlock()
}
