package configstore

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// RefreshInterval is how often the Refresher reloads the store.
const RefreshInterval = 10 * time.Second

// Refresher keeps an atomically-swappable Snapshot up to date by
// polling a Store on a fixed interval. Readers call Current() and get
// one coherent Snapshot for the life of their request; a refresh that
// happens mid-request never mutates the Snapshot they already hold.
type Refresher struct {
	store   Store
	current atomic.Pointer[Snapshot]
}

// NewRefresher creates a Refresher. Call Start to perform the initial
// synchronous load and begin the background refresh loop.
func NewRefresher(store Store) *Refresher {
	return &Refresher{store: store}
}

// Start performs one synchronous load so the first requests don't
// observe an empty snapshot, then spawns the background refresh loop.
// If the initial load fails, it is logged to stderr and Start returns
// the error; callers may choose to proceed anyway, in which case
// requests will see an empty snapshot (and 503) until the first
// successful background refresh.
func (r *Refresher) Start(ctx context.Context) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configstore: initial load failed: %v\n", err)
	} else {
		r.current.Store(snap)
	}

	go r.loop(ctx)

	return err
}

func (r *Refresher) loop(ctx context.Context) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := r.store.Load(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "configstore: refresh failed, keeping previous snapshot: %v\n", err)
				continue
			}
			r.current.Store(snap)
		}
	}
}

// Current returns the most recently published Snapshot, or nil if no
// load has ever succeeded.
func (r *Refresher) Current() *Snapshot {
	return r.current.Load()
}
