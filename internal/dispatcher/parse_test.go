package dispatcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseRequestModelFromBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"model":"llama3","prompt":"hi"}`))
	pr, err := parseRequest(req)
	if err != nil {
		t.Fatalf("parseRequest failed: %v", err)
	}
	if !pr.hasModel || pr.model != "llama3" {
		t.Errorf("model = %q, hasModel = %v, want llama3, true", pr.model, pr.hasModel)
	}
}

func TestParseRequestModelFromQueryWhenBodyMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate?model=mistral", strings.NewReader(`{}`))
	pr, err := parseRequest(req)
	if err != nil {
		t.Fatalf("parseRequest failed: %v", err)
	}
	if !pr.hasModel || pr.model != "mistral" {
		t.Errorf("model = %q, hasModel = %v, want mistral, true", pr.model, pr.hasModel)
	}
}

func TestParseRequestBodyModelTakesPrecedenceOverQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate?model=mistral", strings.NewReader(`{"model":"llama3"}`))
	pr, err := parseRequest(req)
	if err != nil {
		t.Fatalf("parseRequest failed: %v", err)
	}
	if pr.model != "llama3" {
		t.Errorf("model = %q, want llama3 (body takes precedence)", pr.model)
	}
}

func TestParseRequestMalformedBodyIsNotAnError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`not json at all`))
	pr, err := parseRequest(req)
	if err != nil {
		t.Fatalf("parseRequest should never fail on a bad body, got: %v", err)
	}
	if pr.hasModel {
		t.Error("malformed body should decode to an empty mapping with no model")
	}
}

func TestParseQueryPreservesOrderAndDecodesEscapes(t *testing.T) {
	got := parseQuery("b=2&a=hello%20world&b=3")
	want := []struct{ name, value string }{
		{"b", "2"}, {"a", "hello world"}, {"b", "3"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d params, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].Value != w.value {
			t.Errorf("param[%d] = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestParseQueryEmpty(t *testing.T) {
	if got := parseQuery(""); got != nil {
		t.Errorf("parseQuery(\"\") = %v, want nil", got)
	}
}
