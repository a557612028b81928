package dispatcher

import "net/http"

// filterRequestHeaders implements spec.md §4.6.5: copy the incoming
// headers, drop Authorization and Host, pass everything else through
// unchanged. Content-Type for body-bearing methods is set later by the
// Forwarder, which knows whether it ended up building a JSON body.
func filterRequestHeaders(h http.Header) http.Header {
	out := h.Clone()
	out.Del("Authorization")
	out.Del("Host")
	return out
}
