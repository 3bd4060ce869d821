// Package httpx adapts the host HTTP client for outbound calls.
//
// Some hosted function runtimes reject request options that SDKs set by
// default (cache directives, CORS-style hints). Instead of mutating
// http.DefaultClient, every outbound caller in this module gets its client
// from NewClient, which strips those options before delegating.
package httpx

import (
	"net/http"
	"time"
)

// strippedHeaders are request headers the hosted runtime refuses.
var strippedHeaders = []string{
	"Cache-Control",
	"Pragma",
	"Sec-Fetch-Mode",
	"Sec-Fetch-Site",
}

// Transport is a RoundTripper that removes unsupported request options.
type Transport struct {
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !hasStrippedHeader(req.Header) {
		return t.base().RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	clean := req.Clone(req.Context())
	for _, h := range strippedHeaders {
		clean.Header.Del(h)
	}
	return t.base().RoundTrip(clean)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func hasStrippedHeader(h http.Header) bool {
	for _, name := range strippedHeaders {
		if _, ok := h[http.CanonicalHeaderKey(name)]; ok {
			return true
		}
	}
	return false
}

// NewClient returns an *http.Client using the adapting transport.
// A zero timeout means no overall client timeout, which streaming callers need.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &Transport{Base: http.DefaultTransport},
		Timeout:   timeout,
	}
}

// Wrap returns a copy of c whose transport strips unsupported options.
func Wrap(c *http.Client) *http.Client {
	if c == nil {
		return NewClient(0)
	}
	if _, ok := c.Transport.(*Transport); ok {
		return c
	}
	wrapped := *c
	wrapped.Transport = &Transport{Base: c.Transport}
	return &wrapped
}
