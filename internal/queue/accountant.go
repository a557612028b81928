// Package queue tracks per-backend in-flight request counts. Counters
// are keyed by backend name rather than embedded in the Backend value
// itself, so a config refresh (which replaces Backend values wholesale)
// never loses or resets a backend's queue depth.
package queue

import (
	"sync"
	"sync/atomic"
)

// Accountant is safe for concurrent use. The zero value is ready to
// use.
type Accountant struct {
	counters sync.Map // string -> *atomic.Int64
}

func (a *Accountant) counter(name string) *atomic.Int64 {
	if v, ok := a.counters.Load(name); ok {
		return v.(*atomic.Int64)
	}
	v, _ := a.counters.LoadOrStore(name, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Inc increments the in-flight count for backend name and returns the
// new value.
func (a *Accountant) Inc(name string) int64 {
	return a.counter(name).Add(1)
}

// Dec decrements the in-flight count for backend name and returns the
// new value. It must be called exactly once for every Inc, including
// on error and panic-recovery paths.
func (a *Accountant) Dec(name string) int64 {
	return a.counter(name).Add(-1)
}

// Depth returns the current in-flight count for backend name, used
// only to order candidates — never to gate admission.
func (a *Accountant) Depth(name string) int64 {
	return a.counter(name).Load()
}
