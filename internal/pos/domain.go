package pos

import (
	"errors"
	"time"

	"github.com/arkabooks/arkabooks/internal/finance"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
)

// PaymentMethod selects how a cart is settled. Credit carts open an AR/AP
// record alongside the journal entry.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentCredit PaymentMethod = "Credit"
)

// ValidPaymentMethod reports whether the method is a known value.
func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentCash || m == PaymentCredit
}

// PurchaseInput describes a multi-line purchase cart. Line UnitValue is the
// gross unit cost before discount allocation.
type PurchaseInput struct {
	WarehouseID  int64
	UserID       int64
	ContactID    int64
	Date         time.Time
	Lines        []inventory.CartLine
	Discount     int64
	ShippingCost int64
	Payment      PaymentMethod
	DueDate      time.Time
}

// SaleInput describes a multi-line sales cart. Line UnitValue is the gross
// unit price before discount allocation.
type SaleInput struct {
	WarehouseID  int64
	UserID       int64
	ContactID    int64
	Date         time.Time
	Lines        []inventory.CartLine
	Discount     int64
	ShippingCost int64
	Payment      PaymentMethod
	DueDate      time.Time
}

// OperationResult ties together everything one cart produced.
type OperationResult struct {
	Entry     ledger.JournalEntry
	Movements []inventory.StockMovement
	Lines     []inventory.AllocatedLine
	Bill      *finance.Record
	// NetTotal is the settled amount: gross − discount + shipping.
	NetTotal int64
}

var (
	// ErrEmptyCart indicates a cart without lines.
	ErrEmptyCart = errors.New("pos: cart requires at least one line")
	// ErrInvalidPayment indicates an unknown payment method.
	ErrInvalidPayment = errors.New("pos: invalid payment method")
	// ErrContactRequired indicates a credit cart without a contact.
	ErrContactRequired = errors.New("pos: credit carts require a contact")
	// ErrInvalidLine indicates a line with non-positive quantity or negative value.
	ErrInvalidLine = errors.New("pos: line quantity must be positive and unit value non-negative")
	// ErrExcessiveDiscount indicates a discount larger than the cart subtotal.
	ErrExcessiveDiscount = errors.New("pos: discount exceeds cart subtotal")
)

func validateCart(lines []inventory.CartLine, discount, shipping int64, payment PaymentMethod, contactID int64, date time.Time) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	if date.IsZero() {
		return errors.New("pos: date required")
	}
	if !ValidPaymentMethod(payment) {
		return ErrInvalidPayment
	}
	if payment == PaymentCredit && contactID == 0 {
		return ErrContactRequired
	}
	if discount < 0 || shipping < 0 {
		return errors.New("pos: discount and shipping must be non-negative")
	}
	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitValue < 0 || line.ProductID == 0 {
			return ErrInvalidLine
		}
		subtotal += line.Subtotal()
	}
	if discount > subtotal {
		return ErrExcessiveDiscount
	}
	return nil
}
