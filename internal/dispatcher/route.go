package dispatcher

import "github.com/thibautrey/ollama-proxy-server/internal/configstore"

// modelBasedEndpoints is the set from spec.md §4.6.3 where model
// selection is required and load-aware backend picking applies.
var modelBasedEndpoints = map[string]bool{
	"/api/generate": true,
	"/api/chat":     true,
	"/generate":     true,
	"/chat":         true,
}

// routeError is a terminal response the Dispatcher writes directly,
// without involving the attempt loop.
type routeError struct {
	status int
	body   string
}

func (e *routeError) Error() string { return e.body }

// route builds the candidate backend list per spec.md §4.6.3.
func route(snap *configstore.Snapshot, pr *parsedRequest) ([]*configstore.Backend, *routeError) {
	if modelBasedEndpoints[pr.path] {
		if !pr.hasModel {
			return nil, &routeError{status: 400, body: "Missing 'model' in request"}
		}
		candidates := snap.CandidatesForModel(pr.model)
		if len(candidates) == 0 {
			return nil, &routeError{status: 503, body: "No servers support the requested model."}
		}
		return candidates, nil
	}

	backend, ok := snap.DefaultBackend()
	if !ok {
		return nil, &routeError{status: 503, body: "Default server is not available."}
	}
	return []*configstore.Backend{backend}, nil
}

// exhaustionError is returned by the Dispatcher's attempt loop when
// every candidate has been tried and none could handle the request.
func exhaustionError(modelBased bool) *routeError {
	if modelBased {
		return &routeError{status: 503, body: "No available servers could handle the request."}
	}
	return &routeError{status: 503, body: "Failed to forward request to default server."}
}
