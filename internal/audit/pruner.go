package audit

import (
	"context"
	"time"
)

// DefaultRetention is how long audit entries are kept.
const DefaultRetention = 30 * 24 * time.Hour

const defaultPruneInterval = 6 * time.Hour

// Logger defines the logging interface used by the pruner.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// PrunerOptions configures RunPruner.
type PrunerOptions struct {
	// Retention is how long entries are kept. Zero selects DefaultRetention.
	Retention time.Duration

	// Interval between prune passes. Default: 6h
	Interval time.Duration

	Logger Logger
}

// RunPruner deletes expired entries immediately and then every interval,
// until ctx is cancelled. It blocks; run it in its own goroutine.
func RunPruner(ctx context.Context, repo Repository, opts PrunerOptions) {
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := repo.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("failed to prune audit log", "error", err)
		case n > 0:
			logger.Debug("pruned audit log", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
