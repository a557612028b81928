package circuitbreaker

import (
	"testing"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

func TestAllowClosedByDefault(t *testing.T) {
	m := New()
	backend := &configstore.Backend{Name: "gpu-1"}
	if !m.Allow(backend) {
		t.Error("a fresh breaker should start closed (allow)")
	}
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	m := New()
	backend := &configstore.Backend{Name: "gpu-1"}

	for i := 0; i < FailureThreshold-1; i++ {
		m.RecordFailure(backend)
	}
	if m.IsTripped(backend) {
		t.Fatal("breaker should not trip before reaching the threshold")
	}

	m.RecordFailure(backend)
	if !m.IsTripped(backend) {
		t.Fatal("breaker should trip once consecutive failures reach the threshold")
	}
	if m.Allow(backend) {
		t.Error("Allow should be false immediately after tripping (within cooldown)")
	}
}

func TestRecordSuccessResetsBreaker(t *testing.T) {
	m := New()
	backend := &configstore.Backend{Name: "gpu-1"}

	for i := 0; i < FailureThreshold; i++ {
		m.RecordFailure(backend)
	}
	if !m.IsTripped(backend) {
		t.Fatal("setup: breaker should be tripped")
	}

	m.RecordSuccess(backend)
	if m.IsTripped(backend) {
		t.Error("RecordSuccess should close the breaker")
	}
	if !m.Allow(backend) {
		t.Error("Allow should be true after a success resets the breaker")
	}
}

func TestBreakersAreIndependentPerBackend(t *testing.T) {
	m := New()
	a := &configstore.Backend{Name: "gpu-1"}
	b := &configstore.Backend{Name: "gpu-2"}

	for i := 0; i < FailureThreshold; i++ {
		m.RecordFailure(a)
	}

	if !m.IsTripped(a) {
		t.Error("gpu-1 should be tripped")
	}
	if m.IsTripped(b) {
		t.Error("gpu-2 should be unaffected by gpu-1's failures")
	}
}
