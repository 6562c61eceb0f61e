package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunCleanup purges expired records every interval until ctx is cancelled.
func RunCleanup(ctx context.Context, store Store, interval time.Duration, batchSize int, logger *zap.Logger) {
	if store == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CleanupOnce(ctx, store, time.Now(), batchSize, logger)
		}
	}
}

// CleanupOnce runs a single purge and logs the outcome.
func CleanupOnce(ctx context.Context, store Store, now time.Time, batchSize int, logger *zap.Logger) int {
	removed, err := store.CleanupExpired(ctx, now.UTC(), batchSize)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("idempotency cleanup failed", zap.Error(err))
		}
		return 0
	}
	if removed > 0 {
		logger.Debug("idempotency cleanup removed records", zap.Int("removed", removed))
	}
	return removed
}
