package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

func TestProbeAliveBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New()
	backend := &configstore.Backend{Name: "gpu-1", URL: srv.URL}
	if !p.Probe(context.Background(), backend) {
		t.Error("Probe should report true for a 200-responding backend")
	}
}

func TestProbeDeadBackend(t *testing.T) {
	p := New()
	backend := &configstore.Backend{Name: "gpu-1", URL: "http://127.0.0.1:1"}
	if p.Probe(context.Background(), backend) {
		t.Error("Probe should report false when the connection is refused")
	}
}

func TestProbeNonTwoXX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New()
	backend := &configstore.Backend{Name: "gpu-1", URL: srv.URL}
	if p.Probe(context.Background(), backend) {
		t.Error("Probe should report false for a non-2xx response")
	}
}
