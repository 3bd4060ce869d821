package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransportStripsUnsupportedHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Authorization", "Bearer token")

	resp, err := NewClient(0).Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got.Get("Cache-Control") != "" || got.Get("Pragma") != "" {
		t.Errorf("unsupported headers reached the server: %v", got)
	}
	if got.Get("Authorization") != "Bearer token" {
		t.Errorf("regular headers must pass through, got %q", got.Get("Authorization"))
	}
	if req.Header.Get("Cache-Control") != "no-store" {
		t.Error("caller's request was mutated")
	}
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(&http.Client{})
	if _, ok := wrapped.Transport.(*Transport); !ok {
		t.Fatalf("expected *Transport, got %T", wrapped.Transport)
	}
	if Wrap(wrapped) != wrapped {
		t.Error("wrapping twice should return the same client")
	}
	if Wrap(nil) == nil {
		t.Error("Wrap(nil) should return a usable client")
	}
}
