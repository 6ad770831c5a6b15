package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts transactional repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one transaction.
type TxRepository interface {
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	// ListByOperationForUpdate loads an operation's live rows under row
	// locks, serialising concurrent settlement of the same bill.
	ListByOperationForUpdate(ctx context.Context, operationID uuid.UUID) ([]Record, error)
	ListByContact(ctx context.Context, contactID int64, recordType RecordType) ([]Record, error)
	ListOutstanding(ctx context.Context, recordType RecordType, asOf time.Time) ([]Record, error)
	VoidByOperation(ctx context.Context, operationID uuid.UUID) (int64, error)
	// MaxCodeSeq returns the highest code sequence issued for the
	// (type, contact, day) partition.
	MaxCodeSeq(ctx context.Context, recordType RecordType, contactID int64, day time.Time) (int, error)
}
