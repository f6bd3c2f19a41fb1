package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/devserver"
	"github.com/five82/depot/internal/mutation"
	"github.com/five82/depot/internal/screens"
)

func writeConfig(t *testing.T, dir, apiURL string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`api_url = %q
cache_db = %q
log_file = %q
log_level = "debug"
`, apiURL, filepath.Join(dir, "cache.db"), filepath.Join(dir, "depot.log"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func startDemo(t *testing.T) string {
	t.Helper()
	srv, err := devserver.New(devserver.Options{})
	if err != nil {
		t.Fatalf("devserver.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func TestOpen_WiresSessionAndSeedsFromSnapshot(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEPOT_TOKEN", "")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, startDemo(t))
	opts := Options{ConfigPath: cfgPath, PrefsPath: filepath.Join(dir, "prefs.toml")}
	ctx := context.Background()

	s, err := Open(ctx, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Role != auth.RoleViewer {
		t.Fatalf("role = %v, want viewer without token", s.Role)
	}
	if s.Snapshot == nil {
		t.Fatalf("snapshot not opened")
	}
	if _, err := s.Lists.Refetch(ctx, collection.ListKey("inventory")); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logData, err := os.ReadFile(filepath.Join(dir, "depot.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), "session ready") {
		t.Fatalf("log missing session line: %q", logData)
	}

	again, err := Open(ctx, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	snap := again.Lists.Peek(collection.ListKey("inventory"))
	if !snap.HasData || !snap.Stale || len(snap.Data) != 6 {
		t.Fatalf("seeded inventory = %+v", snap)
	}
}

func TestOpen_OverridesAndDependencies(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://127.0.0.1:1/api")
	var stderr bytes.Buffer

	s, err := Open(context.Background(), Options{
		ConfigPath: cfgPath,
		PrefsPath:  filepath.Join(dir, "prefs.toml"),
		APIURL:     "http://example.test/v2",
		Role:       "storekeeper",
		LogTarget:  LogToStderr,
		Stderr:     &stderr,
		NoCache:    true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Client.BaseURL() != "http://example.test/v2" {
		t.Fatalf("BaseURL = %q", s.Client.BaseURL())
	}
	if s.Role != auth.RoleStorekeeper {
		t.Fatalf("role = %v", s.Role)
	}
	if s.Snapshot != nil {
		t.Fatalf("snapshot opened with NoCache")
	}
	if !strings.Contains(stderr.String(), "session ready") {
		t.Fatalf("stderr = %q", stderr.String())
	}

	deps := s.Mutations.Dependents(mutation.Mutation{Op: mutation.OpCreate, Resource: "issues"})
	found := false
	for _, k := range deps {
		if k == collection.ListKey("inventory") {
			found = true
		}
	}
	if !found {
		t.Fatalf("issues dependents = %v, want inventory list", deps)
	}
}

func TestScreenConfig_PrefsOverrideDefaults(t *testing.T) {
	s := &Session{}
	s.Config.PageSize = 10
	s.Prefs.SetScreen("vendors", s.Prefs.Screen("vendors").WithHidden([]string{"gstin"}))

	size, hidden, sortKey, desc := s.ScreenConfig(screenNamed(t, "vendors"))
	if size != 10 || len(hidden) != 1 || hidden[0] != "gstin" || sortKey != "" || desc {
		t.Fatalf("ScreenConfig = %d %v %q %v", size, hidden, sortKey, desc)
	}

	sp := s.Prefs.Screen("vendors")
	sp.PageSize, sp.Sort, sp.Desc = 50, "name", true
	s.Prefs.SetScreen("vendors", sp)
	size, _, sortKey, desc = s.ScreenConfig(screenNamed(t, "vendors"))
	if size != 50 || sortKey != "name" || !desc {
		t.Fatalf("ScreenConfig = %d %q %v", size, sortKey, desc)
	}
}

func screenNamed(t *testing.T, name string) screens.Screen {
	t.Helper()
	s, ok := screens.Lookup(name)
	if !ok {
		t.Fatalf("no screen %s", name)
	}
	return s
}
