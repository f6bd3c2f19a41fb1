package app

import (
	"context"
	"log/slog"
	"time"
)

const defaultPollInterval = 30 * time.Second

// Revalidator is implemented by *collection.Store.
type Revalidator interface {
	RevalidateWatched() int
}

// StartPoller launches a background goroutine that revalidates watched keys
// at a fixed cadence. Stale entries refetch; entries whose last fetch failed
// wait for a manual retry. It returns immediately.
func StartPoller(ctx context.Context, logger *slog.Logger, interval time.Duration, stores ...Revalidator) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if n := revalidate(stores); n > 0 {
				logger.Debug("revalidated watched keys", "started", n)
			}
		}
	}()
}

func revalidate(stores []Revalidator) int {
	started := 0
	for _, s := range stores {
		started += s.RevalidateWatched()
	}
	return started
}
