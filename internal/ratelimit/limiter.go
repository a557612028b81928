// Package ratelimit protects a backend from the proxy's own admission
// pressure: once a backend recovers from an outage, every queued
// candidate request would otherwise pile onto it at once. Grounded on
// the teacher's attacker.Engine, which paces its whole request loop
// off a golang.org/x/time/rate.Limiter.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

// Limiter holds one token-bucket rate.Limiter per backend name. A
// backend with no configured rate is unlimited.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns a ready-to-use Limiter.
func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether one more request may be admitted to backend
// right now. It never blocks: a backend over its limit is simply
// skipped for this attempt, same as a dead backend, rather than
// stalling the dispatch loop waiting for a token.
func (l *Limiter) Allow(backend *configstore.Backend) bool {
	if backend.RateLimitPerSecond <= 0 {
		return true
	}
	return l.limiterFor(backend).Allow()
}

func (l *Limiter) limiterFor(backend *configstore.Backend) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[backend.Name]
	if !ok {
		burst := backend.RateLimitPerSecond
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(backend.RateLimitPerSecond), burst)
		l.limiters[backend.Name] = lim
	}
	return lim
}
