package finance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCodeTaken indicates the unique finance code constraint fired; the
// service regenerates the code once before giving up.
var ErrCodeTaken = errors.New("finance: code already taken")

// Repository persists AR/AP records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("finance repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

const recordColumns = `id, code, record_type, operation_id, contact_id, entry_id, date_issued, due_date, bill_amount, payment_amount, payment_nth, voided, created_at, updated_at`

func (r *txRepository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO finances
(code, record_type, operation_id, contact_id, entry_id, date_issued, due_date, bill_amount, payment_amount, payment_nth, voided, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,FALSE,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		rec.Code, string(rec.Type), rec.OperationID, rec.ContactID, nullInt(rec.EntryID),
		rec.DateIssued, nullTime(rec.DueDate), rec.BillAmount, rec.PayAmount, rec.PaymentNth).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrCodeTaken
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *txRepository) ListByOperationForUpdate(ctx context.Context, operationID uuid.UUID) ([]Record, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+recordColumns+`
FROM finances WHERE operation_id=$1 AND voided=FALSE
ORDER BY payment_nth ASC, id ASC
FOR UPDATE`, operationID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *txRepository) ListByContact(ctx context.Context, contactID int64, recordType RecordType) ([]Record, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+recordColumns+`
FROM finances WHERE contact_id=$1 AND record_type=$2 AND voided=FALSE
ORDER BY date_issued ASC, id ASC`, contactID, string(recordType))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *txRepository) ListOutstanding(ctx context.Context, recordType RecordType, asOf time.Time) ([]Record, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+recordColumns+`
FROM finances f WHERE record_type=$1 AND voided=FALSE AND date_issued <= $2
AND operation_id IN (
  SELECT operation_id FROM finances
  WHERE record_type=$1 AND voided=FALSE
  GROUP BY operation_id
  HAVING SUM(bill_amount) - SUM(payment_amount) > 0
)
ORDER BY date_issued ASC, id ASC`, string(recordType), asOf)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *txRepository) VoidByOperation(ctx context.Context, operationID uuid.UUID) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE finances SET voided=TRUE, updated_at=NOW()
WHERE operation_id=$1 AND voided=FALSE`, operationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) MaxCodeSeq(ctx context.Context, recordType RecordType, contactID int64, day time.Time) (int, error) {
	pattern := codePrefix(recordType) + "-BK-" + day.Format(codeDateLayout) + "-%"
	var max int
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(SPLIT_PART(code, '-', 5) AS INTEGER)), 0)
FROM finances WHERE contact_id=$1 AND record_type=$2 AND code LIKE $3`,
		contactID, string(recordType), pattern).Scan(&max)
	return max, err
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var recordType string
		var entryID *int64
		var dueDate *time.Time
		if err := rows.Scan(&rec.ID, &rec.Code, &recordType, &rec.OperationID, &rec.ContactID, &entryID,
			&rec.DateIssued, &dueDate, &rec.BillAmount, &rec.PayAmount, &rec.PaymentNth, &rec.Voided,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Type = RecordType(recordType)
		if entryID != nil {
			rec.EntryID = *entryID
		}
		if dueDate != nil {
			rec.DueDate = *dueDate
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
