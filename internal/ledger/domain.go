package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountCategory enumerates CoA categories.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "ASSET"
	CategoryLiability AccountCategory = "LIABILITY"
	CategoryEquity    AccountCategory = "EQUITY"
	CategoryRevenue   AccountCategory = "REVENUE"
	CategoryCost      AccountCategory = "COST"
	CategoryExpense   AccountCategory = "EXPENSE"
)

// ValidCategory reports whether the category is a known value.
func ValidCategory(c AccountCategory) bool {
	switch c {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryRevenue, CategoryCost, CategoryExpense:
		return true
	}
	return false
}

// NormalSide is the side on which an account balance grows.
type NormalSide string

const (
	NormalDebit  NormalSide = "D"
	NormalCredit NormalSide = "C"
)

// EntryStatus enumerates journal lifecycle values. Voided entries are kept
// for audit and excluded from every balance computation.
type EntryStatus string

const (
	EntryStatusActive EntryStatus = "ACTIVE"
	EntryStatusVoided EntryStatus = "VOIDED"
)

// SourceType identifies the business operation behind a journal entry.
type SourceType string

const (
	SourceSales      SourceType = "Sales"
	SourcePurchase   SourceType = "Purchase"
	SourceAdjustment SourceType = "Adjustment"
	SourceReturn     SourceType = "Return"
	SourceTransfer   SourceType = "Transfer"
	SourcePayment    SourceType = "Payment"
	SourceWithdrawal SourceType = "Withdrawal"
	SourceDeposit    SourceType = "Deposit"
	SourceVoucher    SourceType = "Voucher"
	SourceExpense    SourceType = "Expense"
	SourceGeneral    SourceType = "General"
)

// AccountGroup is a CoA category prefix ("10100") under which child account
// codes are allocated sequentially.
type AccountGroup struct {
	ID         int64
	Code       string
	Name       string
	Category   AccountCategory
	NormalSide NormalSide
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Account models a chart of accounts node. OpeningBalance is in minor
// currency units, signed on the account's normal side.
type Account struct {
	ID             int64
	GroupID        int64
	Code           string
	Name           string
	Category       AccountCategory
	NormalSide     NormalSide
	OpeningBalance int64
	IsCashBank     bool
	Locked         bool
	WarehouseID    *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JournalEntry captures the header of one balanced posting set. Entries
// sharing an OperationID belong to the same business operation.
type JournalEntry struct {
	ID          int64
	OperationID uuid.UUID
	Reference   string
	DateIssued  time.Time
	Description string
	Source      SourceType
	WarehouseID int64
	UserID      int64
	Status      EntryStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Postings    []Posting
}

// Posting stores a debit or credit amount against one account. Postings are
// immutable; corrections go through reversing entries.
type Posting struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     int64
	Credit    int64
	CreatedAt time.Time
}

// AccountBalance pairs an account with posting sums over some date window.
type AccountBalance struct {
	Account
	Debit  int64
	Credit int64
}

// Signed returns the window activity signed on the account's normal side.
func (b AccountBalance) Signed() int64 {
	if b.NormalSide == NormalDebit {
		return b.Debit - b.Credit
	}
	return b.Credit - b.Debit
}

// Closing returns opening balance plus signed activity.
func (b AccountBalance) Closing() int64 {
	return b.OpeningBalance + b.Signed()
}

// PostingInput describes one journal line for a posting request.
type PostingInput struct {
	AccountID int64
	Debit     int64
	Credit    int64
}

// EntryInput groups fields required to create a journal entry. Leave
// Reference empty to have the store allocate one for the source type.
type EntryInput struct {
	OperationID uuid.UUID
	Reference   string
	DateIssued  time.Time
	Description string
	Source      SourceType
	WarehouseID int64
	UserID      int64
	Postings    []PostingInput
}

// CreateAccountInput carries account registry creation parameters.
type CreateAccountInput struct {
	GroupID        int64
	Name           string
	OpeningBalance int64
	IsCashBank     bool
	WarehouseID    *int64
}

// VoidInput wraps parameters for voiding an entry.
type VoidInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

// ReverseInput wraps parameters for a reversing entry.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Date        time.Time
	Description string
}

var (
	// ErrUnbalancedEntry indicates sum(debit) != sum(credit).
	ErrUnbalancedEntry = errors.New("ledger: journal postings must balance")
	// ErrEmptyPosting indicates a line with neither debit nor credit.
	ErrEmptyPosting = errors.New("ledger: posting requires a debit or credit amount")
	// ErrTooFewPostings indicates less than two lines.
	ErrTooFewPostings = errors.New("ledger: journal requires at least two postings")
	// ErrAccountNotFound indicates a missing or deleted account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrGroupNotFound indicates a missing account group.
	ErrGroupNotFound = errors.New("ledger: account group not found")
	// ErrInvalidCategory indicates an unknown account category.
	ErrInvalidCategory = errors.New("ledger: invalid account category")
	// ErrDuplicateCode indicates the account code already exists.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrAccountLocked indicates the account rejects structural changes.
	ErrAccountLocked = errors.New("ledger: account is locked")
	// ErrAccountInUse indicates postings or finance rows reference the account.
	ErrAccountInUse = errors.New("ledger: account is referenced and cannot be deleted")
	// ErrNormalSideImmutable indicates the normal side cannot change anymore.
	ErrNormalSideImmutable = errors.New("ledger: normal side is immutable once posted against")
	// ErrPlugAccountManaged indicates the equity plug balance is engine-owned.
	ErrPlugAccountManaged = errors.New("ledger: equity plug balance is recomputed, not editable")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrEntryAlreadyVoided indicates a repeated void.
	ErrEntryAlreadyVoided = errors.New("ledger: journal entry already voided")
	// ErrEntryHasDependents indicates live downstream rows reference the entry.
	ErrEntryHasDependents = errors.New("ledger: journal entry has active dependents")
	// ErrSequenceConflict indicates the reference sequence race was lost twice.
	ErrSequenceConflict = errors.New("ledger: reference sequence conflict")
)

// Validate ensures posting input meets minimum criteria. The balance
// invariant is checked before per-line shape so a mismatched total is always
// reported as ErrUnbalancedEntry.
func (in EntryInput) Validate() error {
	if in.DateIssued.IsZero() {
		return errors.New("ledger: date issued required")
	}
	if in.Source == "" {
		return errors.New("ledger: source type required")
	}
	if len(in.Postings) < 2 {
		return ErrTooFewPostings
	}
	var debit, credit int64
	for idx, line := range in.Postings {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: posting %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: posting %d negative amount", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return ErrUnbalancedEntry
	}
	for idx, line := range in.Postings {
		if line.Debit == 0 && line.Credit == 0 {
			return ErrEmptyPosting
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: posting %d cannot be both debit and credit", idx)
		}
	}
	return nil
}
