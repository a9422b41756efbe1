// ABOUTME: Shared fixtures for command tests
// ABOUTME: Fake EveryAction server, temp config and a command runner capturing output
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu      gosync.Mutex
	known   map[string]int
	upserts []map[string]any
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch strings.TrimPrefix(r.URL.Path, "/v4/") {
	case "people/findOrCreate":
		f.upserts = append(f.upserts, body)
		emails, _ := body["emails"].([]any)
		if len(emails) > 0 {
			email, _ := emails[0].(map[string]any)["email"].(string)
			if id, ok := f.known[email]; ok {
				reply(http.StatusOK, map[string]any{"vanId": id, "status": "Processed"})
				return
			}
		}
		reply(http.StatusCreated, map[string]any{"vanId": 101 + len(f.upserts) - 1, "status": "Processed"})
	case "people/find":
		reply(http.StatusNotFound, map[string]any{"errors": []any{map[string]any{"text": "Unmatched"}}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeServer) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

// testEnv points config, data and the API at temporary locations.
type testEnv struct {
	configPath string
	dbPath     string
	api        *fakeServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	for _, key := range []string{"EVERYACTION_APP_NAME", "EVERYACTION_API_KEY", "EVERYACTION_BASE_URL", "EVERYACTION_ONLY_UPSERT_EMPTY_FIELDS", "EVERYACTION_DB_PATH", "EVERYACTION_RATE_LIMIT"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	t.Setenv("LOG_FORMAT", "json")

	api := &fakeServer{known: map[string]int{"known@x.org": 55}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	configPath := filepath.Join(dir, "config.json")
	cfg := map[string]any{
		"app_name": "test-app",
		"api_key":  "secret",
		"base_url": srv.URL + "/v4/",
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	return &testEnv{
		configPath: configPath,
		dbPath:     filepath.Join(dir, "journal.db"),
		api:        api,
	}
}

// run executes the command line with the env's config and journal.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	full := append([]string{"--config", e.configPath, "--db-path", e.dbPath}, args...)
	return runCommand(t, stdin, full...)
}

func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
