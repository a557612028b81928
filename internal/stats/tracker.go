// Package stats tracks per-backend forward-latency distributions for
// the operator monitor TUI. It is purely an in-memory observability
// aid — the CSV access log schema in spec.md §3 is fixed and carries
// none of this data. Grounded on the teacher's internal/stats.Monitor,
// which uses the same HdrHistogram-per-key pattern for its
// per-second latency buckets.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Tracker holds one histogram per backend name.
type Tracker struct {
	mu         sync.Mutex
	histograms map[string]*hdrhistogram.Histogram
}

// NewTracker returns a ready-to-use Tracker.
func NewTracker() *Tracker {
	return &Tracker{histograms: make(map[string]*hdrhistogram.Histogram)}
}

// Record adds one forward-latency sample for backend.
func (t *Tracker) Record(backend string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.histograms[backend]
	if !ok {
		// 1µs floor, 30s ceiling, 3 significant figures — matches the
		// teacher's bucket configuration, which comfortably spans
		// both fast completions and a slow generation backend.
		h = hdrhistogram.New(1, 30_000_000, 3)
		t.histograms[backend] = h
	}
	_ = h.RecordValue(latency.Microseconds())
}

// Snapshot reports p50/p95/p99 latency (microsecond resolution) for backend, or
// ok=false if no samples have been recorded yet.
func (t *Tracker) Snapshot(backend string) (p50, p95, p99 time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.histograms[backend]
	if !exists || h.TotalCount() == 0 {
		return 0, 0, 0, false
	}
	toDuration := func(percentile float64) time.Duration {
		return time.Duration(h.ValueAtQuantile(percentile)) * time.Microsecond
	}
	return toDuration(50), toDuration(95), toDuration(99), true
}
