package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordType separates accounts payable from accounts receivable.
type RecordType string

const (
	TypePayable    RecordType = "Payable"
	TypeReceivable RecordType = "Receivable"
)

// ValidRecordType reports whether the type is a known value.
func ValidRecordType(t RecordType) bool {
	return t == TypePayable || t == TypeReceivable
}

// codePrefix returns the finance code prefix for the record type.
func codePrefix(t RecordType) string {
	if t == TypePayable {
		return "PY"
	}
	return "RC"
}

// codeDateLayout renders DDMMYYYY inside finance codes.
const codeDateLayout = "02012006"

// FormatCode builds `{PY|RC}-BK-{DDMMYYYY}-{contactID}-{%07d}`. The format
// is stable; downstream reconciliation parses it.
func FormatCode(t RecordType, date time.Time, contactID int64, seq int) string {
	return fmt.Sprintf("%s-BK-%s-%d-%07d", codePrefix(t), date.Format(codeDateLayout), contactID, seq)
}

// Record is one AR/AP row. The first row of an operation carries the bill
// amount; each payment appends a row with a running PaymentNth. Outstanding
// for an operation is Σbill − Σpayment over live rows.
type Record struct {
	ID          int64
	Code        string
	Type        RecordType
	OperationID uuid.UUID
	ContactID   int64
	EntryID     int64
	DateIssued  time.Time
	DueDate     time.Time
	BillAmount  int64
	PayAmount   int64
	PaymentNth  int
	Voided      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BillInput carries parameters for opening an AR/AP record.
type BillInput struct {
	Type        RecordType
	OperationID uuid.UUID
	ContactID   int64
	EntryID     int64
	DateIssued  time.Time
	DueDate     time.Time
	BillAmount  int64
	ActorID     int64
}

// PaymentInput carries parameters for settling part of an operation's bill.
type PaymentInput struct {
	OperationID uuid.UUID
	EntryID     int64
	Date        time.Time
	Amount      int64
	ActorID     int64
}

var (
	// ErrRecordNotFound indicates no finance rows exist for the key.
	ErrRecordNotFound = errors.New("finance: record not found")
	// ErrInvalidType indicates an unknown record type.
	ErrInvalidType = errors.New("finance: invalid record type")
	// ErrInvalidAmount indicates a non-positive bill or payment amount.
	ErrInvalidAmount = errors.New("finance: amount must be positive")
	// ErrInvoiceSettled indicates the bill is fully paid; no further postings.
	ErrInvoiceSettled = errors.New("finance: invoice already settled")
	// ErrOverSettlement indicates a payment exceeding the outstanding amount.
	ErrOverSettlement = errors.New("finance: payment exceeds outstanding amount")
	// ErrCodeConflict indicates the code sequence race was lost twice.
	ErrCodeConflict = errors.New("finance: code sequence conflict")
)

// Validate checks bill input shape.
func (in BillInput) Validate() error {
	if !ValidRecordType(in.Type) {
		return ErrInvalidType
	}
	if in.ContactID == 0 {
		return errors.New("finance: contact required")
	}
	if in.OperationID == uuid.Nil {
		return errors.New("finance: operation id required")
	}
	if in.DateIssued.IsZero() {
		return errors.New("finance: issue date required")
	}
	if in.BillAmount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks payment input shape.
func (in PaymentInput) Validate() error {
	if in.OperationID == uuid.Nil {
		return errors.New("finance: operation id required")
	}
	if in.Date.IsZero() {
		return errors.New("finance: payment date required")
	}
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
