package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// PlugRecomputer recomputes the retained-earnings plug account.
type PlugRecomputer interface {
	EquityPlugRecompute(ctx context.Context, asOf time.Time) (int64, error)
}

// CacheInvalidator drops cached report payloads.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// NewEquityPlugHandler refreshes the plug balance and invalidates cached
// reports so the next balance sheet reflects the new figure.
func NewEquityPlugHandler(recomputer PlugRecomputer, cache CacheInvalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload EquityPlugPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		asOf := payload.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		plug, err := recomputer.EquityPlugRecompute(ctx, asOf)
		if err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Warn("report cache invalidation failed", slog.Any("error", err))
			}
		}
		logger.Info("equity plug recomputed",
			slog.Int64("plug", plug),
			slog.Time("as_of", asOf))
		return nil
	}
}
