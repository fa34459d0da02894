package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionSweepInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically prunes
// feedback flags older than ttl. A ttl of zero disables the worker.
func StartRetentionWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(retentionSweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("retention worker started", "interval", retentionSweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepFeedback(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepFeedback(ctx context.Context, repo Repository, ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	deleted, err := repo.DeleteFeedbackBefore(ctx, cutoff)
	if err != nil {
		slog.Error("retention worker failed to prune feedback", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("retention worker pruned feedback", "count", deleted, "cutoff", cutoff)
	}
}
