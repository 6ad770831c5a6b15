package serviceorder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks a repair order from intake through workshop to settlement.
// Completed is terminal and reachable only through payment.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusFinished   Status = "Finished"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// ValidStatus reports whether the status is a known variant.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusFinished, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Closed reports whether the status admits no further mutation.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentMethod selects how a finished order is settled. Credit opens a
// receivable against the order's contact.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentCredit PaymentMethod = "Credit"
)

// ValidPaymentMethod reports whether the method is a known value.
func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentCash || m == PaymentCredit
}

// Order is one customer repair intake. The customer's device and complaint
// live in Description; PhoneType names the unit brought in.
type Order struct {
	ID           int64
	OrderNumber  string
	DateIssued   time.Time
	CustomerName string
	Description  string
	PhoneNumber  string
	PhoneType    string
	Address      string
	Status       Status
	UserID       int64
	TechnicianID int64
	WarehouseID  int64
	ContactID    int64
	// PartsOperationID groups the stock movements of the most recent
	// parts batch.
	PartsOperationID uuid.UUID
	// EntryID is the settlement journal entry, set once paid.
	EntryID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Part is a stock item consumed by a repair. UnitCost captures the product's
// weighted-average cost at the moment the part was added; settlement bills
// COGS from it.
type Part struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice int64
	UnitCost  int64
	CreatedAt time.Time
}

// orderDateLayout renders DDMMYYYY.
const orderDateLayout = "02012006"

// FormatOrderNumber builds `ORDER-{warehouseID}-{DDMMYYYY}-{userID}-{%05d}`.
// The sequence counts per (warehouse, user, day).
func FormatOrderNumber(warehouseID int64, date time.Time, userID int64, seq int) string {
	return fmt.Sprintf("ORDER-%d-%s-%d-%05d", warehouseID, date.Format(orderDateLayout), userID, seq)
}

// CreateInput carries intake parameters for a new order.
type CreateInput struct {
	DateIssued   time.Time
	CustomerName string
	Description  string
	PhoneNumber  string
	PhoneType    string
	Address      string
	UserID       int64
	WarehouseID  int64
}

// PartLine is one part consumed by the repair, priced for the customer.
type PartLine struct {
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

// AddPartsInput carries the parts consumed while working an order.
type AddPartsInput struct {
	OrderNumber string
	Date        time.Time
	Lines       []PartLine
	ActorID     int64
}

// PayInput settles a finished order.
type PayInput struct {
	OrderNumber string
	Date        time.Time
	Payment     PaymentMethod
	DueDate     time.Time
	ActorID     int64
}

var (
	// ErrOrderNotFound indicates a missing order.
	ErrOrderNotFound = errors.New("serviceorder: order not found")
	// ErrInvalidStatus indicates an unknown or unreachable target status.
	ErrInvalidStatus = errors.New("serviceorder: invalid status")
	// ErrOrderClosed indicates the order is completed or cancelled.
	ErrOrderClosed = errors.New("serviceorder: order already closed")
	// ErrNoParts indicates settlement of an order without billed parts.
	ErrNoParts = errors.New("serviceorder: order has no parts to bill")
	// ErrInvalidPart indicates a part line with bad quantity or price.
	ErrInvalidPart = errors.New("serviceorder: part quantity must be positive and price non-negative")
	// ErrInvalidPayment indicates an unknown payment method.
	ErrInvalidPayment = errors.New("serviceorder: invalid payment method")
	// ErrContactRequired indicates a credit settlement without a contact.
	ErrContactRequired = errors.New("serviceorder: credit settlement requires a registered contact")
	// ErrNumberConflict indicates the order number race was lost twice.
	ErrNumberConflict = errors.New("serviceorder: order number conflict")
)

// Validate checks intake shape.
func (in CreateInput) Validate() error {
	if in.DateIssued.IsZero() {
		return errors.New("serviceorder: date required")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return errors.New("serviceorder: customer name required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errors.New("serviceorder: description required")
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return errors.New("serviceorder: phone number required")
	}
	if in.UserID == 0 || in.WarehouseID == 0 {
		return errors.New("serviceorder: user and warehouse required")
	}
	return nil
}

// Validate checks parts shape.
func (in AddPartsInput) Validate() error {
	if strings.TrimSpace(in.OrderNumber) == "" {
		return ErrOrderNotFound
	}
	if in.Date.IsZero() {
		return errors.New("serviceorder: date required")
	}
	if len(in.Lines) == 0 {
		return ErrNoParts
	}
	for _, line := range in.Lines {
		if line.ProductID == 0 || line.Quantity <= 0 || line.UnitPrice < 0 {
			return ErrInvalidPart
		}
	}
	return nil
}

// Validate checks settlement shape.
func (in PayInput) Validate() error {
	if strings.TrimSpace(in.OrderNumber) == "" {
		return ErrOrderNotFound
	}
	if in.Date.IsZero() {
		return errors.New("serviceorder: date required")
	}
	if !ValidPaymentMethod(in.Payment) {
		return ErrInvalidPayment
	}
	return nil
}
