package dispatcher

import (
	"testing"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

func TestRouteModelBasedMissingModel(t *testing.T) {
	snap := &configstore.Snapshot{}
	pr := &parsedRequest{path: "/api/generate", hasModel: false}

	_, routeErr := route(snap, pr)
	if routeErr == nil || routeErr.status != 400 {
		t.Fatalf("route() = %v, want a 400 routeError", routeErr)
	}
}

func TestRouteModelBasedNoCapableBackend(t *testing.T) {
	snap := &configstore.Snapshot{
		Backends: []*configstore.Backend{
			{Name: "gpu-1", Models: map[string]struct{}{"mistral": {}}},
		},
	}
	pr := &parsedRequest{path: "/api/chat", hasModel: true, model: "llama3"}

	_, routeErr := route(snap, pr)
	if routeErr == nil || routeErr.status != 503 {
		t.Fatalf("route() = %v, want a 503 routeError", routeErr)
	}
}

func TestRouteNonModelEndpointUsesDefaultBackend(t *testing.T) {
	snap := &configstore.Snapshot{
		Backends: []*configstore.Backend{
			{Name: "gpu-1"},
			{Name: "gpu-2"},
		},
	}
	pr := &parsedRequest{path: "/v1/embeddings"}

	candidates, routeErr := route(snap, pr)
	if routeErr != nil {
		t.Fatalf("route() returned an error: %v", routeErr)
	}
	if len(candidates) != 1 || candidates[0].Name != "gpu-1" {
		t.Errorf("candidates = %v, want just [gpu-1] (the default)", candidates)
	}
}

func TestRouteNonModelEndpointNoBackendsConfigured(t *testing.T) {
	snap := &configstore.Snapshot{}
	pr := &parsedRequest{path: "/v1/embeddings"}

	_, routeErr := route(snap, pr)
	if routeErr == nil || routeErr.status != 503 {
		t.Fatalf("route() = %v, want a 503 routeError", routeErr)
	}
}
