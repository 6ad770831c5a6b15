package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/shared"
)

// ActivityPort records inventory events for the activity trail.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service is the inventory costing engine: it records immutable stock
// movements, recomputes weighted-average cost, and answers stock queries.
// Recording a movement never mutates product cost; revaluation is a separate
// explicit step.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
	logger   *slog.Logger
	allowNeg bool
	now      func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds the costing engine.
func NewService(repo RepositoryPort, activity ActivityPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	return &Service{repo: repo, activity: activity, logger: logger, allowNeg: cfg.AllowNegativeStock, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordMovement inserts one immutable movement row. Outbound movements are
// rejected when they would drive stock negative, unless the deployment
// allows it.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (StockMovement, error) {
	if err := input.Validate(); err != nil {
		return StockMovement{}, err
	}
	if input.OperationID == uuid.Nil {
		input.OperationID = uuid.New()
	}
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if product.IsService {
			return ErrServiceProduct
		}
		if input.Quantity < 0 && !s.allowNeg {
			stock, err := currentStockTx(ctx, tx, input.ProductID, input.WarehouseID)
			if err != nil {
				return err
			}
			if stock+input.Quantity < 0 {
				return ErrNegativeStock
			}
		}
		movement, err = tx.InsertMovement(ctx, input)
		return err
	})
	if err != nil {
		return StockMovement{}, err
	}
	if s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:     input.ActorID,
			WarehouseID: input.WarehouseID,
			Action:      "inventory.move",
			Entity:      "stock_movement",
			EntityID:    fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"type":       string(input.Type),
				"quantity":   input.Quantity,
			},
			At: s.now(),
		})
	}
	return movement, nil
}

// RecomputeWeightedAverageCost revalues a product from its cost-establishing
// movements: cost = Σ(unitCost·qty) / Σ(qty) over Purchase, Adjustment and
// OpeningBalance rows. When the summed quantity is not positive the division
// is undefined; the cost is left unchanged and the condition logged, not
// errored, so a drained product never blocks the nightly revaluation run.
func (s *Service) RecomputeWeightedAverageCost(ctx context.Context, productID int64) (int64, error) {
	var cost int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		movements, err := tx.ListMovementsByProduct(ctx, productID)
		if err != nil {
			return err
		}
		var totalCost, totalQty int64
		for _, m := range movements {
			inBase, err := establishesCost(m.Type)
			if err != nil {
				return fmt.Errorf("%w: %q on movement %d", err, m.Type, m.ID)
			}
			if !inBase {
				continue
			}
			totalCost += m.UnitCost * m.Quantity
			totalQty += m.Quantity
		}
		if totalQty <= 0 {
			if s.logger != nil {
				s.logger.Warn("cost recompute skipped: non-positive cost base",
					slog.Int64("product_id", productID),
					slog.Int64("base_quantity", totalQty))
			}
			cost = product.CurrentCost
			return nil
		}
		cost = divRoundHalfUp(totalCost, totalQty)
		if cost == product.CurrentCost {
			return nil
		}
		return tx.SetProductCost(ctx, productID, cost)
	})
	if err != nil {
		return 0, err
	}
	return cost, nil
}

// CurrentStock returns initial stock plus signed live movement quantities
// for one (product, warehouse) pair.
func (s *Service) CurrentStock(ctx context.Context, productID, warehouseID int64) (int64, error) {
	var stock int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		stock, err = currentStockTx(ctx, tx, productID, warehouseID)
		return err
	})
	return stock, err
}

// CurrentCost returns the product's stored weighted-average cost.
func (s *Service) CurrentCost(ctx context.Context, productID int64) (int64, error) {
	var cost int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		cost = product.CurrentCost
		return nil
	})
	return cost, err
}

// MovementsByOperation lists every movement belonging to one business
// operation, voided rows included.
func (s *Service) MovementsByOperation(ctx context.Context, operationID uuid.UUID) ([]StockMovement, error) {
	var movements []StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movements, err = tx.ListMovementsByOperation(ctx, operationID)
		return err
	})
	return movements, err
}

// VoidOperationMovements marks every live movement of an operation voided,
// removing them from stock and cost-base math. Returns the voided count.
func (s *Service) VoidOperationMovements(ctx context.Context, operationID uuid.UUID, actorID int64) (int64, error) {
	var voided int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		voided, err = tx.VoidMovementsByOperation(ctx, operationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if voided > 0 && s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:  actorID,
			Action:   "inventory.void",
			Entity:   "stock_movement",
			EntityID: operationID.String(),
			Meta:     map[string]any{"voided": voided},
			At:       s.now(),
		})
	}
	return voided, nil
}

func currentStockTx(ctx context.Context, tx TxRepository, productID, warehouseID int64) (int64, error) {
	initial, err := tx.InitialStock(ctx, productID, warehouseID)
	if err != nil {
		return 0, err
	}
	moved, err := tx.SumQuantity(ctx, productID, warehouseID)
	if err != nil {
		return 0, err
	}
	return initial + moved, nil
}
