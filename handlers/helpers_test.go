// ABOUTME: Shared fixtures for handler tests
// ABOUTME: Minimal fake EveryAction API, client constructor and in-memory journal
package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hotgluexyz/target-everyaction/db"
	"github.com/hotgluexyz/target-everyaction/everyaction"
	"github.com/hotgluexyz/target-everyaction/sync"
)

type fakeEveryAction struct {
	mu       gosync.Mutex
	people   map[string]map[string]any
	byEmail  map[string]string
	activist []map[string]any
	writes   []string
}

func newFakeEveryAction() *fakeEveryAction {
	return &fakeEveryAction{
		people:  map[string]map[string]any{},
		byEmail: map[string]string{},
	}
}

func (f *fakeEveryAction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/")
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.Method == http.MethodGet && path == "activistCodes":
		reply(http.StatusOK, map[string]any{"items": f.activist, "count": len(f.activist)})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "people/"):
		person, ok := f.people[strings.TrimPrefix(path, "people/")]
		if !ok {
			reply(http.StatusNotFound, map[string]any{"errors": []any{map[string]any{"code": "NOT_FOUND"}}})
			return
		}
		reply(http.StatusOK, person)
	case r.Method == http.MethodPost && path == "people/find":
		emails, _ := body["emails"].([]any)
		if len(emails) > 0 {
			email, _ := emails[0].(map[string]any)["email"].(string)
			if id, ok := f.byEmail[strings.ToLower(email)]; ok {
				reply(http.StatusFound, map[string]any{"vanId": json.Number(id), "status": "Found"})
				return
			}
		}
		reply(http.StatusNotFound, map[string]any{"errors": []any{map[string]any{"text": "Unmatched"}}})
	case r.Method == http.MethodPost && path == "people/findOrCreate":
		f.writes = append(f.writes, path)
		reply(http.StatusCreated, map[string]any{"vanId": 101, "status": "Processed"})
	case r.Method == http.MethodPost:
		f.writes = append(f.writes, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeEveryAction) addPerson(id, email string, person map[string]any) {
	person["emails"] = []any{map[string]any{"email": email}}
	f.people[id] = person
	f.byEmail[email] = id
}

func (f *fakeEveryAction) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newTestHandlers(t *testing.T, api *fakeEveryAction, onlyEmpty bool) *ContactHandlers {
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

	return NewContactHandlers(client, sync.NewUpserter(client, sync.UpserterOptions{OnlyUpsertEmptyFields: onlyEmpty}))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = database.Close() })

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	return database
}
