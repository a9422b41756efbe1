// ABOUTME: Shared fixtures for everyaction tests
// ABOUTME: Builds a client against an httptest server and records incoming requests
package everyaction

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
	User   string
	Pass   string
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) add(req *http.Request) {
	data, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)
	user, pass, _ := req.BasicAuth()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   body,
		User:   user,
		Pass:   pass,
	})
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func (r *recorder) count(method, path string) int {
	n := 0
	for _, req := range r.all() {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// newTestClient serves handler and returns a client with near-zero backoff.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recorder) {
	t.Helper()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec.add(req)
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	httpClient := srv.Client()
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	client, err := New(Options{
		BaseURL:       srv.URL + "/v4/",
		AppName:       "test-app",
		APIKey:        "secret",
		HTTPClient:    httpClient,
		BackoffFactor: time.Microsecond,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
