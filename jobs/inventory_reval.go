package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/arkabooks/arkabooks/internal/directory"
)

// ProductCatalog lists the products whose cost can be revalued.
type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]directory.Product, error)
}

// CostRecomputer recomputes one product's weighted-average cost.
type CostRecomputer interface {
	RecomputeWeightedAverageCost(ctx context.Context, productID int64) (int64, error)
}

// NewInventoryRevaluationHandler walks the catalogue and recomputes each
// stocked product's weighted-average cost. Services carry no stock and are
// skipped. A single failing product does not abort the sweep.
func NewInventoryRevaluationHandler(catalog ProductCatalog, costs CostRecomputer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InventoryRevaluationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		products, err := catalog.ListProducts(ctx)
		if err != nil {
			return err
		}
		var done, failed atomic.Int64
		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(4)
		for _, product := range products {
			product := product
			if product.IsService {
				continue
			}
			group.Go(func() error {
				if _, err := costs.RecomputeWeightedAverageCost(gctx, product.ID); err != nil {
					failed.Add(1)
					logger.Warn("cost revaluation failed",
						slog.Int64("product_id", product.ID),
						slog.String("code", product.Code),
						slog.Any("error", err))
					return nil
				}
				done.Add(1)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		logger.Info("inventory revaluation complete",
			slog.Int64("recomputed", done.Load()),
			slog.Int64("failed", failed.Load()),
			slog.Time("scheduled_for", payload.ScheduledFor))
		return nil
	}
}
