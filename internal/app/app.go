package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/five82/depot/internal/api"
	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/config"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/logging"
	"github.com/five82/depot/internal/mutation"
	"github.com/five82/depot/internal/prefs"
	"github.com/five82/depot/internal/screens"
	"github.com/five82/depot/internal/snapshot"
)

// LogTarget selects where a Session logs.
type LogTarget int

const (
	// LogToFile writes to the configured log file, used while the TUI owns
	// the terminal.
	LogToFile LogTarget = iota
	// LogToStderr writes to stderr, used by one-shot commands.
	LogToStderr
)

// Options configure a Session. Zero values fall back to the config file.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/depot/prefs.toml
	APIURL     string
	Token      string
	Role       string
	LogLevel   string
	LogTarget  LogTarget
	// Stderr overrides os.Stderr for LogToStderr.
	Stderr io.Writer
	// NoCache skips the offline snapshot database.
	NoCache   bool
	PollEvery time.Duration
}

// Session is the composition root shared by the TUI and the CLI commands.
type Session struct {
	Config    config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    *slog.Logger
	Role      auth.Role
	Client    *api.Client
	Lists     *collection.Lists
	Details   *collection.Details
	Mutations *mutation.Coordinator
	// Snapshot is nil when the cache is disabled or could not be opened.
	Snapshot *snapshot.DB

	closers []func() error
}

// Open loads configuration and wires the client, caches and mutation
// coordinator.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(opts.Token); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(opts.Role); v != "" {
		cfg.Role = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = opts.PollEvery
	}
	if opts.NoCache {
		cfg.CacheDB = ""
	}

	s := &Session{Config: cfg, PrefsPath: opts.PrefsPath}

	switch opts.LogTarget {
	case LogToStderr:
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		s.Logger = logging.New(w, cfg.LogLevel, cfg.LogFormat)
	default:
		logger, closeLog, err := logging.Open(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		s.Logger = logger
		s.closers = append(s.closers, closeLog)
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		s.Logger.Warn("load prefs", "err", err)
	}
	s.Prefs = userPrefs

	role, err := auth.Resolve(cfg.Role, cfg.Token)
	if err != nil {
		s.Logger.Warn("read role from token", "err", err)
	}
	s.Role = role

	client, err := api.NewClient(api.Options{
		BaseURL: cfg.APIURL,
		Token:   cfg.Token,
		Timeout: cfg.RequestTimeout,
		Logger:  s.Logger.With("component", "api"),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	s.Client = client

	listOpts := collection.Options[[]entity.Entity]{
		StaleAfter: cfg.StaleAfter,
		Logger:     s.Logger.With("component", "cache"),
	}
	if cfg.CacheDB != "" {
		db, err := snapshot.Open(cfg.CacheDB, client.BaseURL(), s.Logger.With("component", "snapshot"))
		if err != nil {
			s.Logger.Warn("offline cache disabled", "err", err)
		} else {
			s.Snapshot = db
			s.closers = append(s.closers, db.Close)
			listOpts.OnCommit = db.OnCommit(nil)
		}
	}

	s.Lists = collection.NewListStore(client, listOpts)
	s.Details = collection.NewDetailStore(client, collection.Options[entity.Entity]{
		StaleAfter: cfg.StaleAfter,
		Logger:     s.Logger.With("component", "cache"),
	})
	s.closers = append(s.closers, func() error {
		s.Lists.Close()
		s.Details.Close()
		return nil
	})

	if s.Snapshot != nil {
		if _, err := s.Snapshot.SeedInto(ctx, s.Lists); err != nil {
			s.Logger.Warn("seed from snapshot", "err", err)
		}
	}

	s.Mutations = mutation.New(client, mutation.Options{Logger: s.Logger.With("component", "mutation")}, s.Lists, s.Details)
	for resource, keys := range screens.Dependencies() {
		s.Mutations.Declare(resource, keys...)
	}

	s.Logger.Debug("session ready", "api", client.BaseURL(), "role", s.Role.String(), "cache", cfg.CacheDB != "")
	return s, nil
}

// Close releases the caches, the snapshot database and the log file, in
// reverse order of acquisition.
func (s *Session) Close() error {
	var errs []error
	closers := slices.Clone(s.closers)
	slices.Reverse(closers)
	for _, fn := range closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// ScreenConfig returns the remembered table settings for screen merged with
// config defaults.
func (s *Session) ScreenConfig(screen screens.Screen) (pageSize int, hidden []string, sortKey string, desc bool) {
	sp := s.Prefs.Screen(screen.Resource)
	pageSize = sp.PageSize
	if pageSize <= 0 {
		pageSize = s.Config.PageSize
	}
	return pageSize, sp.Hidden(), sp.Sort, sp.Desc
}

// SavePrefs writes the current preferences.
func (s *Session) SavePrefs() error {
	return prefs.Save(s.PrefsPath, s.Prefs)
}
