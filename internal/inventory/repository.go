package inventory

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort abstracts transactional repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one transaction.
type TxRepository interface {
	GetProduct(ctx context.Context, id int64) (ProductCosting, error)
	SetProductCost(ctx context.Context, id int64, cost int64) error

	InsertMovement(ctx context.Context, in MovementInput) (StockMovement, error)
	ListMovementsByProduct(ctx context.Context, productID int64) ([]StockMovement, error)
	ListMovementsByOperation(ctx context.Context, operationID uuid.UUID) ([]StockMovement, error)
	VoidMovementsByOperation(ctx context.Context, operationID uuid.UUID) (int64, error)

	// SumQuantity aggregates signed quantities of live movements for one
	// (product, warehouse) pair. InitialStock is the opening quantity stored
	// alongside the product-warehouse link.
	SumQuantity(ctx context.Context, productID, warehouseID int64) (int64, error)
	InitialStock(ctx context.Context, productID, warehouseID int64) (int64, error)
}
