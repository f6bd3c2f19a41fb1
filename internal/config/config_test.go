package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(TokenEnv, "")

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.StaleAfter != 5*time.Minute || cfg.PageSize != 10 || cfg.PollInterval != 30*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}

	wantCache, err := expandPath(defaultCacheDB)
	if err != nil {
		t.Fatalf("expandPath(defaultCacheDB) returned error: %v", err)
	}
	if cfg.CacheDB != wantCache {
		t.Fatalf("CacheDB = %q, want %q", cfg.CacheDB, wantCache)
	}
	if !strings.HasPrefix(cfg.LogFile, home) {
		t.Fatalf("LogFile = %q, want it under HOME %q", cfg.LogFile, home)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(TokenEnv, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "  https://fleet.example.com/api  "
token = " abc "
role = " Manager "
stale_after = "90s"
page_size = 50
request_timeout = "3s"
log_file = "  ~/logs/depot.log  "
log_level = "DEBUG"
log_format = "json"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://fleet.example.com/api" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Token != "abc" || cfg.Role != "manager" {
		t.Fatalf("Token/Role = %q/%q", cfg.Token, cfg.Role)
	}
	if cfg.StaleAfter != 90*time.Second || cfg.RequestTimeout != 3*time.Second || cfg.PageSize != 50 {
		t.Fatalf("parsed = %+v", cfg)
	}
	if cfg.PollInterval != defaultPollInterval {
		t.Fatalf("PollInterval = %v, want default", cfg.PollInterval)
	}
	if cfg.LogFile != filepath.Join(home, "logs", "depot.log") {
		t.Fatalf("LogFile = %q", cfg.LogFile)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("log = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_EmptyCacheDBDisablesCache(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`cache_db = ""`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CacheDB != "" {
		t.Fatalf("CacheDB = %q, want empty", cfg.CacheDB)
	}
}

func TestLoad_TokenFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(TokenEnv, "from-env")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`token = "from-file"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Token != "from-env" {
		t.Fatalf("Token = %q, want from-env", cfg.Token)
	}
}

func TestLoad_InvalidInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cases := map[string]string{
		"syntax":   "api_url = ",
		"duration": `stale_after = "soon"`,
		"negative": `poll_interval = "-5s"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
				t.Fatalf("Load error = %v, want parse config error", err)
			}
		})
	}
}
