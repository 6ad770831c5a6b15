package serviceorder

import (
	"context"
	"time"
)

// RepositoryPort abstracts transactional repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one transaction.
type TxRepository interface {
	InsertOrder(ctx context.Context, order Order) (Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (Order, error)
	// GetByNumberForUpdate row-locks the order, serialising concurrent
	// status changes, parts additions and settlement.
	GetByNumberForUpdate(ctx context.Context, orderNumber string) (Order, error)
	UpdateOrder(ctx context.Context, order Order) (Order, error)
	ListOrders(ctx context.Context, search string, limit, offset int) ([]Order, error)
	// MaxOrderSeq returns the highest order-number sequence issued for the
	// (warehouse, user, day) partition.
	MaxOrderSeq(ctx context.Context, warehouseID, userID int64, day time.Time) (int, error)
	InsertPart(ctx context.Context, part Part) (Part, error)
	ListParts(ctx context.Context, orderID int64) ([]Part, error)
}
