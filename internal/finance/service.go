package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/shared"
)

// ActivityPort records finance events for the activity trail.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service manages AR/AP records. A bill opens an operation's balance;
// payments append rows with a running sequence until the balance reaches
// zero, after which the operation is settled and locked.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
	now      func() time.Time
}

// NewService constructs the finance service.
func NewService(repo RepositoryPort, activity ActivityPort) *Service {
	return &Service{repo: repo, activity: activity, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateBill opens an AR/AP record for a business operation. A finance code
// is allocated per (type, contact, day); a lost allocation race is retried
// once before ErrCodeConflict surfaces.
func (s *Service) CreateBill(ctx context.Context, input BillInput) (Record, error) {
	if err := input.Validate(); err != nil {
		return Record{}, err
	}
	rec, err := s.createBillOnce(ctx, input)
	if errors.Is(err, ErrCodeTaken) {
		rec, err = s.createBillOnce(ctx, input)
		if errors.Is(err, ErrCodeTaken) {
			return Record{}, ErrCodeConflict
		}
	}
	if err != nil {
		return Record{}, err
	}
	if s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   "finance.bill",
			Entity:   "finance",
			EntityID: fmt.Sprintf("%d", rec.ID),
			Meta:     map[string]any{"code": rec.Code, "amount": rec.BillAmount},
			At:       s.now(),
		})
	}
	return rec, nil
}

func (s *Service) createBillOnce(ctx context.Context, input BillInput) (Record, error) {
	var rec Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.MaxCodeSeq(ctx, input.Type, input.ContactID, input.DateIssued)
		if err != nil {
			return err
		}
		rec, err = tx.InsertRecord(ctx, Record{
			Code:        FormatCode(input.Type, input.DateIssued, input.ContactID, seq+1),
			Type:        input.Type,
			OperationID: input.OperationID,
			ContactID:   input.ContactID,
			EntryID:     input.EntryID,
			DateIssued:  input.DateIssued,
			DueDate:     input.DueDate,
			BillAmount:  input.BillAmount,
		})
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// RecordPayment settles part of an operation's outstanding balance. The new
// row inherits type, contact and code lineage from the bill and carries the
// next payment sequence number. Settled operations reject further payments;
// so do payments exceeding the outstanding amount.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Record, error) {
	if err := input.Validate(); err != nil {
		return Record{}, err
	}
	var rec Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.ListByOperationForUpdate(ctx, input.OperationID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrRecordNotFound
		}
		bill := rows[0]
		outstanding, maxNth := summarise(rows)
		if outstanding <= 0 {
			return ErrInvoiceSettled
		}
		if input.Amount > outstanding {
			return ErrOverSettlement
		}
		seq, err := tx.MaxCodeSeq(ctx, bill.Type, bill.ContactID, input.Date)
		if err != nil {
			return err
		}
		rec, err = tx.InsertRecord(ctx, Record{
			Code:        FormatCode(bill.Type, input.Date, bill.ContactID, seq+1),
			Type:        bill.Type,
			OperationID: bill.OperationID,
			ContactID:   bill.ContactID,
			EntryID:     input.EntryID,
			DateIssued:  input.Date,
			DueDate:     bill.DueDate,
			PayAmount:   input.Amount,
			PaymentNth:  maxNth + 1,
		})
		return err
	})
	if err != nil {
		return Record{}, err
	}
	if s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   "finance.pay",
			Entity:   "finance",
			EntityID: fmt.Sprintf("%d", rec.ID),
			Meta:     map[string]any{"code": rec.Code, "amount": rec.PayAmount, "nth": rec.PaymentNth},
			At:       s.now(),
		})
	}
	return rec, nil
}

// Outstanding returns the unsettled balance of one operation.
func (s *Service) Outstanding(ctx context.Context, operationID uuid.UUID) (int64, error) {
	var outstanding int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.ListByOperationForUpdate(ctx, operationID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrRecordNotFound
		}
		outstanding, _ = summarise(rows)
		return nil
	})
	return outstanding, err
}

// ListByContact lists a contact's live rows for one record type.
func (s *Service) ListByContact(ctx context.Context, contactID int64, recordType RecordType) ([]Record, error) {
	if !ValidRecordType(recordType) {
		return nil, ErrInvalidType
	}
	var rows []Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.ListByContact(ctx, contactID, recordType)
		return err
	})
	return rows, err
}

// ListOutstanding lists rows of operations that still carry a balance.
func (s *Service) ListOutstanding(ctx context.Context, recordType RecordType, asOf time.Time) ([]Record, error) {
	if !ValidRecordType(recordType) {
		return nil, ErrInvalidType
	}
	var rows []Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.ListOutstanding(ctx, recordType, asOf)
		return err
	})
	return rows, err
}

// VoidOperation marks every live row of an operation voided. Returns the
// voided count.
func (s *Service) VoidOperation(ctx context.Context, operationID uuid.UUID, actorID int64) (int64, error) {
	var voided int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		voided, err = tx.VoidByOperation(ctx, operationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if voided > 0 && s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:  actorID,
			Action:   "finance.void",
			Entity:   "finance",
			EntityID: operationID.String(),
			Meta:     map[string]any{"voided": voided},
			At:       s.now(),
		})
	}
	return voided, nil
}

// summarise folds an operation's rows into (outstanding, max payment_nth).
func summarise(rows []Record) (int64, int) {
	var outstanding int64
	maxNth := 0
	for _, rec := range rows {
		outstanding += rec.BillAmount - rec.PayAmount
		if rec.PaymentNth > maxNth {
			maxNth = rec.PaymentNth
		}
	}
	return outstanding, maxNth
}
