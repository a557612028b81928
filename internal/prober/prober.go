// Package prober issues a bounded liveness check against a backend's
// root URL, grounded on the teacher's attacker.Engine.PreflightCheck
// (a HEAD-or-GET reachability check performed before load begins).
// Here the same check runs per dispatch attempt instead of once at
// startup.
package prober

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

// Deadline is the hard wall-clock budget for one liveness probe.
const Deadline = 2 * time.Second

// Prober issues liveness checks using a shared client so probes reuse
// connections the same way forwarded requests do.
type Prober struct {
	client *http.Client
}

// New returns a Prober with a client scoped to the probe deadline.
func New() *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: Deadline,
		},
	}
}

// Probe returns true iff a HEAD (or, if HEAD cannot be constructed, a
// GET) request against backend.URL completes within the deadline with
// a 2xx status. Any transport error, non-2xx status, or deadline
// expiry yields false. The response body, if any, is always drained
// and closed so the underlying connection can be reused.
func (p *Prober) Probe(ctx context.Context, backend *configstore.Backend) bool {
	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, backend.URL, nil)
	if err != nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, backend.URL, nil)
		if err != nil {
			return false
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
