package dispatcher

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/thibautrey/ollama-proxy-server/internal/forwarder"
)

// parsedRequest is the result of spec.md §4.6.2: path, ordered query
// parameters, the decoded body (nil for non-POST requests; an empty,
// non-nil map for a POST whose body was empty, not a JSON object, or
// an empty object — the forwarder omits the body in all of these cases),
// and whichever model name, if any, the request named.
type parsedRequest struct {
	path     string
	query    []forwarder.QueryParam
	body     map[string]any
	model    string
	hasModel bool
}

func parseRequest(r *http.Request) (*parsedRequest, error) {
	pr := &parsedRequest{
		path:  r.URL.Path,
		query: parseQuery(r.URL.RawQuery),
	}

	if r.Method == http.MethodPost {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		pr.body = decodeBody(raw)
	}

	pr.model, pr.hasModel = extractModel(pr.body, pr.query)
	return pr, nil
}

// decodeBody attempts a JSON decode of raw into a mapping. A decode
// failure is not a request error per spec.md §4.6.2: the body is
// simply treated as an empty mapping and dispatch continues. gjson's
// ValidBytes is used as a cheap pre-check (no allocation for the
// common "definitely not JSON" case) before paying for a full
// encoding/json unmarshal, grounded on the teacher's use of gjson for
// fast JSON access ahead of a full decode.
func decodeBody(raw []byte) map[string]any {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}

// extractModel implements spec.md §4.6.2's precedence: body["model"]
// first, then the first value of query["model"], else undefined.
func extractModel(body map[string]any, query []forwarder.QueryParam) (string, bool) {
	if body != nil {
		if v, ok := body["model"]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	for _, p := range query {
		if p.Name == "model" {
			return p.Value, true
		}
	}
	return "", false
}

// parseQuery decodes a raw query string into an order-preserving list
// of parameters. net/url.Values is deliberately not used here: it is
// a map, so ranging over it loses the first-seen ordering spec.md §6
// requires when repeated parameters are re-appended upstream.
func parseQuery(raw string) []forwarder.QueryParam {
	if raw == "" {
		return nil
	}

	var out []forwarder.QueryParam
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		name, value := part, ""
		if i := strings.IndexByte(part, '='); i >= 0 {
			name, value = part[:i], part[i+1:]
		}
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		out = append(out, forwarder.QueryParam{Name: name, Value: value})
	}
	return out
}
