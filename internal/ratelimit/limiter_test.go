package ratelimit

import (
	"testing"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

func TestAllowUnlimitedByDefault(t *testing.T) {
	l := New()
	backend := &configstore.Backend{Name: "gpu-1"}
	for i := 0; i < 100; i++ {
		if !l.Allow(backend) {
			t.Fatal("an unconfigured backend should never be rate-limited")
		}
	}
}

func TestAllowEnforcesConfiguredLimit(t *testing.T) {
	l := New()
	backend := &configstore.Backend{Name: "gpu-1", RateLimitPerSecond: 1}

	if !l.Allow(backend) {
		t.Fatal("first request within burst should be allowed")
	}
	if l.Allow(backend) {
		t.Fatal("second immediate request should exceed a 1/s limit with burst 1")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	a := &configstore.Backend{Name: "gpu-1", RateLimitPerSecond: 1}
	b := &configstore.Backend{Name: "gpu-2", RateLimitPerSecond: 1}

	l.Allow(a)
	if !l.Allow(b) {
		t.Error("gpu-2's limiter should be independent of gpu-1's")
	}
}
