package core

// scheduler.go runs background maintenance for the scratch directory.
//
// Every ingest call removes its own staged files and temp directories on all
// exit paths. The sweeper only catches what a crashed or killed process left
// behind. It logs failures and keeps running.

import (
	"context"
	"log/slog"
	"time"
)

// StartScratchSweeper removes scratch leftovers older than the configured
// max age. It runs immediately on start, then every sweep interval, and
// stops when ctx is cancelled. A non-positive interval disables it.
func (s *Service) StartScratchSweeper(ctx context.Context) {
	if s.sweepInterval <= 0 || s.sweepMaxAge <= 0 {
		slog.Info("scratch sweeper disabled")
		return
	}

	slog.Info("scratch sweeper started",
		"dir", s.scratch.Dir(),
		"interval", s.sweepInterval,
		"max_age", s.sweepMaxAge,
	)

	s.runSweep()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scratch sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

// runSweep performs one sweep of the scratch directory.
func (s *Service) runSweep() int {
	start := time.Now()
	removed, err := s.scratch.Sweep(s.sweepMaxAge)
	if err != nil {
		slog.Error("scratch sweep failed", "error", err, "entries_removed", removed)
		return removed
	}
	slog.Debug("scratch sweep completed",
		"entries_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return removed
}
