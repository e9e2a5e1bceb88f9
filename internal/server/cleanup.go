package server

import (
	"context"
	"time"

	"filedrop/internal/storage"
)

// SweepConfig holds configuration for the temp-file sweeper.
type SweepConfig struct {
	Dir      string
	Interval time.Duration
	MaxAge   time.Duration
}

// StartSweepJob removes temp files that an interrupted upload left in the
// upload dir. It runs once immediately, then every Interval, and returns when
// ctx is cancelled. A zero Interval disables the job.
func StartSweepJob(ctx context.Context, cfg SweepConfig) error {
	if cfg.Interval <= 0 {
		Info("sweep_disabled", nil)
		return nil
	}

	Info("sweep_starting", map[string]any{
		"dir":      cfg.Dir,
		"interval": cfg.Interval.String(),
		"max_age":  cfg.MaxAge.String(),
	})

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runSweep(cfg)
	for {
		select {
		case <-ctx.Done():
			Info("sweep_shutting_down", nil)
			return nil
		case <-ticker.C:
			runSweep(cfg)
		}
	}
}

func runSweep(cfg SweepConfig) {
	start := time.Now()
	removed, err := storage.SweepTemp(cfg.Dir, cfg.MaxAge, start)
	if err != nil {
		Error("sweep_failed", map[string]any{"dir": cfg.Dir, "removed": removed}, err)
		return
	}
	if removed > 0 {
		Info("sweep_complete", map[string]any{
			"removed":     removed,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}
