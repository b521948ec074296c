package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// Transport serves every request, whatever its host, from Handler and
// records the URLs it saw. Install it in an http.Client to fake both the
// release API and asset hosts without DNS.
type Transport struct {
	Handler http.Handler

	mu   sync.Mutex
	urls []string
}

// NewClient returns an http.Client routed through a new Transport.
func NewClient(handler http.Handler) (*http.Client, *Transport) {
	tr := &Transport{Handler: handler}
	return &http.Client{Transport: tr}, tr
}

// RoundTrip implements http.RoundTripper.
func (tr *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tr.mu.Lock()
	tr.urls = append(tr.urls, req.URL.String())
	tr.mu.Unlock()

	rec := httptest.NewRecorder()
	tr.Handler.ServeHTTP(rec, req)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// Requests returns the number of requests served.
func (tr *Transport) Requests() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.urls)
}

// URLs returns the requested URLs in order.
func (tr *Transport) URLs() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.urls...)
}
