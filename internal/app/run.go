package app

import (
	"context"
	"fmt"

	"github.com/five82/depot/internal/prefs"
	"github.com/five82/depot/internal/ui"
)

// Run boots the depot TUI on screen until the user quits or the context is
// cancelled. Logs go to the configured log file since the UI owns the
// terminal.
func Run(ctx context.Context, opts Options, screen string) error {
	opts.LogTarget = LogToFile
	s, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start background revalidation of whatever the UI is watching
	StartPoller(ctx, s.Logger.With("component", "poller"), s.Config.PollInterval, s.Lists, s.Details)

	prefsPath := s.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	err = ui.Run(ui.Options{
		Context:   ctx,
		Lists:     s.Lists,
		Details:   s.Details,
		Mutations: s.Mutations,
		Role:      s.Role,
		Prefs:     s.Prefs,
		PrefsPath: prefsPath,
		PageSize:  s.Config.PageSize,
		Logger:    s.Logger.With("component", "ui"),
		Screen:    screen,
	})
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	s.Logger.Info("ui exited")
	return nil
}
