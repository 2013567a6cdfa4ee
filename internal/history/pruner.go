package history

// pruner.go deletes old campaign history on a fixed interval.
//
// The pruner is long-running and stops with its context. A failed run is
// logged and retried on the next tick; it never stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig controls the background pruner.
type PruneConfig struct {
	RetentionDays int           // Days of history to keep (default: 90)
	Interval      time.Duration // How often to run (default: 24h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	return c
}

// StartPruner prunes immediately, then every cfg.Interval until ctx is done.
// Run it in its own goroutine.
func (s *Store) StartPruner(ctx context.Context, cfg PruneConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.Interval.String(),
	)

	s.runPrune(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.runPrune(ctx, cfg)
		}
	}
}

func (s *Store) runPrune(ctx context.Context, cfg PruneConfig) {
	start := time.Now()
	n, err := s.Prune(ctx, cfg.RetentionDays)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned campaign history",
		"campaigns_deleted", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
