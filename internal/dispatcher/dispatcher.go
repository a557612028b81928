// Package dispatcher implements the core request dispatch engine:
// authenticate, parse, route, iterate candidates in load order,
// probe, forward, stream, account, log. See spec.md §4.6.
package dispatcher

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thibautrey/ollama-proxy-server/internal/accesslog"
	"github.com/thibautrey/ollama-proxy-server/internal/circuitbreaker"
	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
	"github.com/thibautrey/ollama-proxy-server/internal/forwarder"
	"github.com/thibautrey/ollama-proxy-server/internal/prober"
	"github.com/thibautrey/ollama-proxy-server/internal/queue"
	"github.com/thibautrey/ollama-proxy-server/internal/ratelimit"
	"github.com/thibautrey/ollama-proxy-server/internal/relay"
	"github.com/thibautrey/ollama-proxy-server/internal/stats"
)

// Dispatcher wires the collaborating components (refresher, queue
// accountant, prober, rate limiter, circuit breaker, forwarder, access
// log, latency tracker) behind one http.Handler. Construct with New;
// the zero value is not usable.
type Dispatcher struct {
	refresher  *configstore.Refresher
	accountant *queue.Accountant
	prober     *prober.Prober
	forwarder  *forwarder.Forwarder
	log        *accesslog.Logger
	latency    *stats.Tracker
	limiter    *ratelimit.Limiter
	breakers   *circuitbreaker.Manager
}

// New wires a Dispatcher from its collaborators. latency may be nil
// if forward-latency tracking is not wanted (the monitor TUI will
// simply show no histogram data).
func New(refresher *configstore.Refresher, accountant *queue.Accountant, p *prober.Prober, fwd *forwarder.Forwarder, log *accesslog.Logger, latency *stats.Tracker) *Dispatcher {
	return &Dispatcher{
		refresher:  refresher,
		accountant: accountant,
		prober:     p,
		forwarder:  fwd,
		log:        log,
		latency:    latency,
		limiter:    ratelimit.New(),
		breakers:   circuitbreaker.New(),
	}
}

// ServeHTTP implements the state machine of spec.md §4.6. No failure
// is allowed to escape this method: an unhandled panic is recovered
// and turned into a 500, per spec.md §7.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(os.Stderr, "dispatcher: recovered panic: %v\n", rec)
			writePlain(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	snap := d.refresher.Current()
	if snap == nil {
		writePlain(w, http.StatusServiceUnavailable, "No available servers could handle the request.")
		return
	}

	ip := clientIP(r)

	// RECEIVED -> AUTHENTICATED
	auth := authenticate(snap, r.Header.Get("Authorization"))
	if !auth.ok {
		d.log.Append(accesslog.EventRejected, auth.user, ip, accesslog.Denied, "None", -1, "Authentication failed")
		writePlain(w, http.StatusForbidden, "")
		return
	}

	// AUTHENTICATED -> PARSED
	pr, err := parseRequest(r)
	if err != nil {
		writePlain(w, http.StatusBadRequest, "Missing 'model' in request")
		return
	}

	// PARSED -> ROUTED
	candidates, routeErr := route(snap, pr)
	if routeErr != nil {
		writePlain(w, routeErr.status, routeErr.body)
		return
	}

	modelBased := modelBasedEndpoints[pr.path]
	headers := filterRequestHeaders(r.Header)
	headers.Set("X-Request-Id", uuid.New().String())

	// ATTEMPTING(backend) -> STREAMING | exhaustion
	resp := d.attemptLoop(r, candidates, pr, headers, snap.RetryAttempts, auth.user, ip)
	if resp == nil {
		e := exhaustionError(modelBased)
		writePlain(w, e.status, e.body)
		return
	}
	defer resp.Body.Close()

	if err := relay.Stream(w, resp.StatusCode, resp.Header, resp.Body); err != nil {
		fmt.Fprintf(os.Stderr, "dispatcher: stream to client failed: %v\n", err)
	}
}

// attemptLoop implements spec.md §4.6.4: sort by load, probe, inc,
// forward, dec, log, and either return a response or drop the
// backend and continue.
func (d *Dispatcher) attemptLoop(
	r *http.Request,
	candidates []*configstore.Backend,
	pr *parsedRequest,
	headers http.Header,
	retryAttempts int,
	user, ip string,
) *http.Response {
	remaining := append([]*configstore.Backend(nil), candidates...)

	for len(remaining) > 0 {
		sort.SliceStable(remaining, func(i, j int) bool {
			return d.accountant.Depth(remaining[i].Name) < d.accountant.Depth(remaining[j].Name)
		})

		b := remaining[0]

		if !d.prober.Probe(r.Context(), b) {
			remaining = remaining[1:]
			continue
		}
		if !d.limiter.Allow(b) {
			remaining = remaining[1:]
			continue
		}
		if !d.breakers.Allow(b) {
			remaining = remaining[1:]
			continue
		}

		depth := d.accountant.Inc(b.Name)
		d.log.Append(accesslog.EventGenRequest, user, ip, accesslog.Authorized, b.Name, int(depth), "")

		start := time.Now()
		resp, err := func() (*http.Response, error) {
			// Dec runs even if Forward panics, so the depth never leaks.
			defer func() { depth = d.accountant.Dec(b.Name) }()
			return d.forwarder.Forward(r.Context(), b, r.Method, pr.path, pr.query, bodyForForward(pr.body), headers, retryAttempts, time.Duration(b.Timeout())*time.Second)
		}()
		d.log.Append(accesslog.EventGenDone, user, ip, accesslog.Authorized, b.Name, int(depth), errMessage(err))
		if err == nil {
			d.breakers.RecordSuccess(b)
			if d.latency != nil {
				d.latency.Record(b.Name, time.Since(start))
			}
			return resp
		}
		d.breakers.RecordFailure(b)

		remaining = remaining[1:]
	}

	return nil
}

// bodyForForward maps an empty parsed body to nil so the Forwarder's
// "non-empty body" check behaves the same whether the original
// request had no body at all or an empty JSON object.
func bodyForForward(body map[string]any) any {
	if len(body) == 0 {
		return nil
	}
	return body
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
}
