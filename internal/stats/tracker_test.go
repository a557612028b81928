package stats

import (
	"testing"
	"time"
)

func TestSnapshotEmptyBackend(t *testing.T) {
	tr := NewTracker()
	if _, _, _, ok := tr.Snapshot("gpu-1"); ok {
		t.Error("Snapshot should report ok=false for a backend with no samples")
	}
}

func TestRecordAndSnapshot(t *testing.T) {
	tr := NewTracker()
	for _, d := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		tr.Record("gpu-1", d)
	}

	p50, p95, p99, ok := tr.Snapshot("gpu-1")
	if !ok {
		t.Fatal("Snapshot should report ok=true once samples exist")
	}
	if p50 <= 0 || p95 <= 0 || p99 <= 0 {
		t.Errorf("percentiles should be positive, got p50=%v p95=%v p99=%v", p50, p95, p99)
	}
	if p50 > p99 {
		t.Errorf("p50 (%v) should not exceed p99 (%v)", p50, p99)
	}
}

func TestTrackerKeysAreIndependent(t *testing.T) {
	tr := NewTracker()
	tr.Record("gpu-1", 5*time.Millisecond)

	if _, _, _, ok := tr.Snapshot("gpu-2"); ok {
		t.Error("gpu-2 should have no samples; Tracker must key histograms per backend")
	}
}
