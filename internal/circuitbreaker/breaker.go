// Package circuitbreaker trips a per-backend breaker after a run of
// consecutive forwarding failures, so the dispatch loop stops wasting
// a full forwarding attempt on a backend that is clearly down, until a
// cooldown elapses and one trial request is let through. The breaker is
// consulted after the liveness probe, so a tripped backend is still
// probed.
// Adapted from the teacher's circuitbreaker.Breaker, which tripped a
// load test run on an error-rate threshold; this rewrites the trigger
// as consecutive-failure counting (no load-test-only error_rate DSL
// survives, since the proxy trips per backend, not per whole run) but
// keeps its atomic tripped-flag-plus-mutex-reason shape.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

// FailureThreshold is how many consecutive forwarding failures trip a
// backend's breaker.
const FailureThreshold = 5

// Cooldown is how long a tripped breaker stays open before letting
// one trial request back through.
const Cooldown = 30 * time.Second

// breaker is one backend's state.
type breaker struct {
	consecutiveFailures int32 // atomic
	tripped             int32 // atomic: 0 = closed, 1 = open
	mu                  sync.Mutex
	trippedAt           time.Time
}

// Manager holds one breaker per backend name, created lazily.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*breaker
}

// New returns a ready-to-use Manager.
func New() *Manager {
	return &Manager{breakers: make(map[string]*breaker)}
}

func (m *Manager) breakerFor(name string) *breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[name]
	if !ok {
		b = &breaker{}
		m.breakers[name] = b
	}
	return b
}

// Allow reports whether backend may be attempted right now. A
// tripped breaker still allows exactly one trial request once the
// cooldown has elapsed (a half-open probe).
func (m *Manager) Allow(backend *configstore.Backend) bool {
	b := m.breakerFor(backend.Name)
	if atomic.LoadInt32(&b.tripped) == 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if time.Since(b.trippedAt) < Cooldown {
		return false
	}
	// Restart the cooldown so only this one trial gets through until it
	// either succeeds (closing the breaker) or the next cooldown ends.
	b.trippedAt = time.Now()
	return true
}

// RecordSuccess resets backend's failure streak and closes its
// breaker if it was open.
func (m *Manager) RecordSuccess(backend *configstore.Backend) {
	b := m.breakerFor(backend.Name)
	atomic.StoreInt32(&b.consecutiveFailures, 0)
	atomic.StoreInt32(&b.tripped, 0)
}

// RecordFailure increments backend's failure streak and trips its
// breaker once FailureThreshold consecutive failures accumulate.
func (m *Manager) RecordFailure(backend *configstore.Backend) {
	b := m.breakerFor(backend.Name)
	n := atomic.AddInt32(&b.consecutiveFailures, 1)
	if n < FailureThreshold {
		return
	}
	if atomic.CompareAndSwapInt32(&b.tripped, 0, 1) {
		b.mu.Lock()
		b.trippedAt = time.Now()
		b.mu.Unlock()
	}
}

// IsTripped reports whether backend's breaker is currently open.
func (m *Manager) IsTripped(backend *configstore.Backend) bool {
	return atomic.LoadInt32(&m.breakerFor(backend.Name).tripped) == 1
}
