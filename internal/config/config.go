package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds depot's settings.
type Config struct {
	APIURL         string
	Token          string
	Role           string
	StaleAfter     time.Duration
	PageSize       int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// CacheDB is the offline snapshot database; empty disables it.
	CacheDB   string
	LogFile   string
	LogLevel  string
	LogFormat string
}

const (
	defaultConfigPath     = "~/.config/depot/config.toml"
	defaultAPIURL         = "http://127.0.0.1:8080/api"
	defaultStaleAfter     = 5 * time.Minute
	defaultPageSize       = 10
	defaultPollInterval   = 30 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultCacheDB        = "~/.local/share/depot/cache.db"
	defaultLogFile        = "~/.local/state/depot/depot.log"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"

	// TokenEnv overrides the token from the file.
	TokenEnv = "DEPOT_TOKEN"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:         defaultAPIURL,
		StaleAfter:     defaultStaleAfter,
		PageSize:       defaultPageSize,
		PollInterval:   defaultPollInterval,
		RequestTimeout: defaultRequestTimeout,
		CacheDB:        mustExpand(defaultCacheDB),
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
	}
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

type rawConfig struct {
	APIURL         string  `toml:"api_url"`
	Token          string  `toml:"token"`
	Role           string  `toml:"role"`
	StaleAfter     string  `toml:"stale_after"`
	PageSize       int     `toml:"page_size"`
	PollInterval   string  `toml:"poll_interval"`
	RequestTimeout string  `toml:"request_timeout"`
	CacheDB        *string `toml:"cache_db"`
	LogFile        string  `toml:"log_file"`
	LogLevel       string  `toml:"log_level"`
	LogFormat      string  `toml:"log_format"`
}

// Load reads the config at path (or the default location), falling back to
// defaults when the file is missing. DEPOT_TOKEN overrides the token.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.merge(raw); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func (c *Config) merge(raw rawConfig) error {
	if v := strings.TrimSpace(raw.APIURL); v != "" {
		c.APIURL = v
	}
	c.Token = strings.TrimSpace(raw.Token)
	c.Role = strings.ToLower(strings.TrimSpace(raw.Role))
	if raw.PageSize > 0 {
		c.PageSize = raw.PageSize
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"stale_after", raw.StaleAfter, &c.StaleAfter},
		{"poll_interval", raw.PollInterval, &c.PollInterval},
		{"request_timeout", raw.RequestTimeout, &c.RequestTimeout},
	}
	for _, d := range durations {
		v := strings.TrimSpace(d.raw)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 {
			return fmt.Errorf("parse config: %s: invalid duration %q", d.name, v)
		}
		*d.dst = parsed
	}

	if raw.CacheDB != nil {
		if v := strings.TrimSpace(*raw.CacheDB); v == "" {
			c.CacheDB = ""
		} else {
			c.CacheDB = mustExpand(v)
		}
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogFormat)); v != "" {
		c.LogFormat = v
	}
	return nil
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv(TokenEnv)); v != "" {
		c.Token = v
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
