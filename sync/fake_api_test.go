// ABOUTME: In-process fake of the EveryAction endpoints used by the upserter
// ABOUTME: Serves people, codes and activist codes and records every request
package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/hotgluexyz/target-everyaction/everyaction"
)

type apiRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeAPI struct {
	mu gosync.Mutex

	people        map[int]map[string]any
	emailIndex    map[string]int
	activistCodes []map[string]any
	codes         []map[string]any
	failures      map[string]int
	nextVanID     int
	nextCodeID    int
	requests      []apiRequest

	// served, when set, is called after each request has been answered.
	served func(method, path string)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		people:     make(map[int]map[string]any),
		emailIndex: make(map[string]int),
		failures:   make(map[string]int),
		nextVanID:  100,
		nextCodeID: 900,
	}
}

func (f *fakeAPI) addPerson(vanID int, person map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	person["vanId"] = vanID
	f.people[vanID] = person
	if emails, ok := person["emails"].([]any); ok {
		for _, e := range emails {
			if m, ok := e.(map[string]any); ok {
				f.emailIndex[strings.ToLower(m["email"].(string))] = vanID
			}
		}
	}
}

// fail makes "METHOD path" (path relative to /v4/) answer with status.
func (f *fakeAPI) fail(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = status
}

func (f *fakeAPI) calls(method, path string) []apiRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)

	path := strings.TrimPrefix(r.URL.Path, "/v4/")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, apiRequest{Method: r.Method, Path: path, Body: body})
	if f.served != nil {
		defer f.served(r.Method, path)
	}

	if status, ok := f.failures[r.Method+" "+path]; ok {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"errors":[{"code":"INVALID_PARAMETER","text":"rejected %s"}]}`, path)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case r.Method == http.MethodPost && path == "people/findOrCreate":
		f.findOrCreate(w, body)
	case r.Method == http.MethodPost && path == "people/find":
		f.find(w, body)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "people":
		id, _ := strconv.Atoi(parts[1])
		person, ok := f.people[id]
		if !ok {
			respond(w, http.StatusNotFound, map[string]any{"errors": []any{map[string]any{"code": "NOT_FOUND"}}})
			return
		}
		respond(w, http.StatusOK, person)
	case r.Method == http.MethodGet && path == "activistCodes":
		respond(w, http.StatusOK, map[string]any{"items": f.activistCodes, "count": len(f.activistCodes)})
	case r.Method == http.MethodGet && path == "codes":
		respond(w, http.StatusOK, map[string]any{"items": f.codes, "count": len(f.codes)})
	case r.Method == http.MethodPost && path == "codes":
		f.nextCodeID++
		f.codes = append(f.codes, map[string]any{"codeId": f.nextCodeID, "name": body["name"], "codeType": body["codeType"]})
		respond(w, http.StatusCreated, f.nextCodeID)
	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "people":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) findOrCreate(w http.ResponseWriter, body map[string]any) {
	if v, ok := body["vanId"].(float64); ok {
		respond(w, http.StatusOK, map[string]any{"vanId": int(v), "status": "Processed"})
		return
	}
	if emails, ok := body["emails"].([]any); ok && len(emails) > 0 {
		email, _ := emails[0].(map[string]any)["email"].(string)
		if id, ok := f.emailIndex[strings.ToLower(email)]; ok {
			respond(w, http.StatusOK, map[string]any{"vanId": id, "status": "Processed"})
			return
		}
	}
	f.nextVanID++
	respond(w, http.StatusCreated, map[string]any{"vanId": f.nextVanID, "status": "Processed"})
}

func (f *fakeAPI) find(w http.ResponseWriter, body map[string]any) {
	emails, _ := body["emails"].([]any)
	if len(emails) > 0 {
		email, _ := emails[0].(map[string]any)["email"].(string)
		if id, ok := f.emailIndex[strings.ToLower(email)]; ok {
			respond(w, http.StatusFound, map[string]any{"vanId": id, "status": "Found"})
			return
		}
	}
	respond(w, http.StatusNotFound, map[string]any{
		"errors": []any{map[string]any{"code": "NOT_FOUND", "text": "Unmatched"}},
	})
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newFakeClient serves api and returns a client with near-zero backoff.
func newFakeClient(t *testing.T, api *fakeAPI) *everyaction.Client {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	httpClient := srv.Client()
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	client, err := everyaction.New(everyaction.Options{
		BaseURL:       srv.URL + "/v4/",
		AppName:       "test-app",
		APIKey:        "secret",
		HTTPClient:    httpClient,
		BackoffFactor: time.Microsecond,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}
