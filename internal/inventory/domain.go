package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType is the closed set of stock movement variants. The costing
// engine switches exhaustively over it; an unknown value is a programming
// error, not data.
type MovementType string

const (
	MovementPurchase       MovementType = "Purchase"
	MovementSales          MovementType = "Sales"
	MovementAdjustment     MovementType = "Adjustment"
	MovementReturn         MovementType = "Return"
	MovementOpeningBalance MovementType = "OpeningBalance"
)

// ValidMovementType reports whether the type is a known variant.
func ValidMovementType(t MovementType) bool {
	switch t {
	case MovementPurchase, MovementSales, MovementAdjustment, MovementReturn, MovementOpeningBalance:
		return true
	}
	return false
}

// establishesCost reports whether a movement type feeds the weighted-average
// cost base. Sales and Return consume cost, they never establish it.
func establishesCost(t MovementType) (bool, error) {
	switch t {
	case MovementPurchase, MovementAdjustment, MovementOpeningBalance:
		return true, nil
	case MovementSales, MovementReturn:
		return false, nil
	default:
		return false, ErrInvalidMovementType
	}
}

// StockMovement is one immutable inventory event. Quantity is signed:
// positive inbound, negative outbound. Amounts are minor currency units.
type StockMovement struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	OperationID uuid.UUID
	Date        time.Time
	Quantity    int64
	UnitCost    int64
	UnitPrice   int64
	Type        MovementType
	IsInitial   bool
	Voided      bool
	CreatedAt   time.Time
}

// ProductCosting is the costing engine's view of a product. Master data CRUD
// lives in the directory module; this projection carries only what costing
// and stock math need.
type ProductCosting struct {
	ID          int64
	Code        string
	Name        string
	CurrentCost int64
	SalePrice   int64
	IsService   bool
}

// MovementInput carries parameters for recording one movement.
type MovementInput struct {
	ProductID   int64
	WarehouseID int64
	OperationID uuid.UUID
	Date        time.Time
	Quantity    int64
	UnitCost    int64
	UnitPrice   int64
	Type        MovementType
	IsInitial   bool
	ActorID     int64
}

var (
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrServiceProduct indicates a stock operation on a service product.
	ErrServiceProduct = errors.New("inventory: service products carry no stock")
	// ErrInvalidQuantity indicates a zero quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be nonzero")
	// ErrInvalidUnitCost indicates a negative unit cost or price.
	ErrInvalidUnitCost = errors.New("inventory: unit cost and price must be non-negative")
	// ErrInvalidMovementType indicates an unknown movement type.
	ErrInvalidMovementType = errors.New("inventory: invalid movement type")
	// ErrNegativeStock indicates an outbound movement would drive stock below zero.
	ErrNegativeStock = errors.New("inventory: insufficient stock")
	// ErrMovementNotFound indicates a missing movement row.
	ErrMovementNotFound = errors.New("inventory: stock movement not found")
)

// Validate checks input shape before any transaction begins.
func (in MovementInput) Validate() error {
	if in.ProductID == 0 || in.WarehouseID == 0 {
		return errors.New("inventory: product and warehouse required")
	}
	if in.Date.IsZero() {
		return errors.New("inventory: movement date required")
	}
	if in.Quantity == 0 {
		return ErrInvalidQuantity
	}
	if in.UnitCost < 0 || in.UnitPrice < 0 {
		return ErrInvalidUnitCost
	}
	if !ValidMovementType(in.Type) {
		return ErrInvalidMovementType
	}
	return nil
}
