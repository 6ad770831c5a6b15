package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one transaction.
// Every mutating ledger operation runs through exactly one WithTx closure so
// partial writes are never observable.
type TxRepository interface {
	// Accounts.
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	InsertAccount(ctx context.Context, acc Account) (Account, error)
	UpdateAccount(ctx context.Context, acc Account) error
	SetAccountLocked(ctx context.Context, id int64, locked bool) error
	DeleteAccount(ctx context.Context, id int64) error
	SetOpeningBalance(ctx context.Context, id int64, amount int64) error
	CountAccountPostings(ctx context.Context, id int64) (int64, error)
	CountAccountRefs(ctx context.Context, id int64) (int64, error)

	// Groups. GetGroupForUpdate serialises concurrent child-code allocation
	// under the same category prefix.
	GetGroupForUpdate(ctx context.Context, id int64) (AccountGroup, error)
	MaxChildSuffix(ctx context.Context, groupID int64) (int, error)

	// Business operations and entries.
	EnsureOperation(ctx context.Context, id uuid.UUID, reference string) error
	MaxReferenceSeq(ctx context.Context, prefix string, userID int64, day time.Time) (int, error)
	InsertEntry(ctx context.Context, in EntryInput) (JournalEntry, error)
	InsertPostings(ctx context.Context, entryID int64, lines []PostingInput) error
	GetEntryWithPostings(ctx context.Context, id int64) (JournalEntry, error)
	UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error
	CountActiveDependents(ctx context.Context, operationID uuid.UUID, excludeEntryID int64) (int64, error)
	FindByReference(ctx context.Context, reference string) ([]JournalEntry, error)
	FindByAccountAndDateRange(ctx context.Context, accountID int64, from, to time.Time) ([]JournalEntry, error)

	// Balance aggregates over ACTIVE entries only.
	SumPostings(ctx context.Context, accountID int64, from, to *time.Time) (debit, credit int64, err error)
	ListAccountBalances(ctx context.Context, from, to *time.Time) ([]AccountBalance, error)
	SumCashActivityBySource(ctx context.Context, from, to time.Time) (map[SourceType]int64, error)
	ListUnbalancedReferences(ctx context.Context) ([]string, error)
}
