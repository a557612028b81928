// Package forwarder issues the upstream request on behalf of the
// Dispatcher: method, path, query, and body re-assembled against a
// chosen backend, retried up to N attempts on transport failure or
// per-attempt deadline expiry only. Any HTTP response received — any
// status code — is returned immediately and is never retried, per
// spec.md §4.4: retrying a partial stream would double-charge the
// backend and could duplicate tokens already sent to the client.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

// QueryParam is one name/value pair from the client's query string.
// A plain []QueryParam (rather than net/url.Values, which is a map)
// is used so repeated parameters are forwarded in the exact order the
// client sent them, per spec.md §4.4 and §6.
type QueryParam struct {
	Name  string
	Value string
}

// bodyBearingMethods are the methods for which a non-empty body is
// re-serialized as JSON and sent upstream.
var bodyBearingMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// Forwarder builds one *http.Client per backend (keyed by name) so
// connection pools are reused across requests and attempts, the same
// way the teacher's Engine keeps one *http.Client per Attack run.
type Forwarder struct {
	mu      sync.Mutex
	clients map[string]*http.Client
}

// New returns a ready-to-use Forwarder.
func New() *Forwarder {
	return &Forwarder{clients: make(map[string]*http.Client)}
}

func (f *Forwarder) clientFor(backend *configstore.Backend) *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[backend.Name]; ok {
		return c
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}
	// Best-effort HTTP/2 to backends that offer it via TLS ALPN
	// negotiation; plain http:// backends and those without h2 use
	// HTTP/1.1.
	_ = http2.ConfigureTransport(transport)

	client := &http.Client{Transport: transport}
	f.clients[backend.Name] = client
	return client
}

// Forward issues the request against backend, retrying on transport
// error or per-attempt deadline expiry up to attempts total tries.
// body is a parsed JSON payload (map[string]any or nil); it is
// re-serialized only for body-bearing methods and only when non-nil.
// headers have already been filtered by the caller (Authorization and
// Host removed). The returned *http.Response's Body must be closed
// (and is expected to be streamed, not buffered) by the caller. When
// every attempt fails, or an error is not retryable, the response is
// nil and the last error is returned.
func (f *Forwarder) Forward(
	ctx context.Context,
	backend *configstore.Backend,
	method, path string,
	query []QueryParam,
	body any,
	headers http.Header,
	attempts int,
	perAttemptTimeout time.Duration,
) (*http.Response, error) {
	if attempts < 1 {
		attempts = 1
	}

	client := f.clientFor(backend)
	targetURL := backend.URL + path
	if q := encodeQuery(query); q != "" {
		targetURL += "?" + q
	}

	var bodyBytes []byte
	if bodyBearingMethods[method] && isNonEmptyBody(body) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("forwarder: failed to encode body: %w", err)
		}
		bodyBytes = b
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
		resp, err := f.attempt(attemptCtx, client, method, targetURL, bodyBytes, headers)

		if err == nil {
			// The caller streams resp.Body under attemptCtx; canceling
			// now would force the connection closed mid-read. Defer the
			// cancel until the caller closes the body.
			resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}
		cancel()
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		// Continue to the next attempt; transport error or deadline
		// expiry only, never a received HTTP status.
	}

	return nil, lastErr
}

// cancelOnCloseBody ties an attempt's context lifetime to its response
// body instead of to the Forward call returning, so a live stream
// being read by the Streaming Relay is never cut out from under it.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (f *Forwarder) attempt(ctx context.Context, client *http.Client, method, targetURL string, bodyBytes []byte, headers http.Header) (*http.Response, error) {
	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, reader)
	if err != nil {
		return nil, fmt.Errorf("forwarder: failed to build request: %w", err)
	}
	req.Header = headers.Clone()
	if bodyBytes != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return client.Do(req)
}

// isNonEmptyBody reports whether body has content worth forwarding.
// An absent body (nil) or an empty JSON object decoded by the
// Dispatcher's parser both count as empty, per spec.md §4.4.
func isNonEmptyBody(body any) bool {
	if body == nil {
		return false
	}
	if m, ok := body.(map[string]any); ok {
		return len(m) > 0
	}
	return true
}

func encodeQuery(query []QueryParam) string {
	if len(query) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for i, p := range query {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(p.Name))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(p.Value))
	}
	return buf.String()
}
