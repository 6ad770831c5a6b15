package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReferenceTaken indicates the generated reference lost a sequence race.
var ErrReferenceTaken = errors.New("ledger: reference already allocated")

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
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

// ListAccountMappings loads the symbolic account table for one module.
func (r *Repository) ListAccountMappings(ctx context.Context, module string) ([]AccountMapping, error) {
	rows, err := r.pool.Query(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings WHERE module=$1`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

const accountColumns = `id, group_id, code, name, category, normal_side, opening_balance, is_cash_bank, locked, warehouse_id, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.GroupID, &a.Code, &a.Name, &a.Category, &a.NormalSide, &a.OpeningBalance, &a.IsCashBank, &a.Locked, &a.WarehouseID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (group_id, code, name, category, normal_side, opening_balance, is_cash_bank, locked, warehouse_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		acc.GroupID, acc.Code, acc.Name, acc.Category, acc.NormalSide, acc.OpeningBalance, acc.IsCashBank, acc.Locked, acc.WarehouseID)
	if err := row.Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, acc Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, normal_side=$3, opening_balance=$4, is_cash_bank=$5, warehouse_id=$6, updated_at=NOW() WHERE id=$1`,
		acc.ID, acc.Name, acc.NormalSide, acc.OpeningBalance, acc.IsCashBank, acc.WarehouseID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) SetAccountLocked(ctx context.Context, id int64, locked bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET locked=$2, updated_at=NOW() WHERE id=$1`, id, locked)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) SetOpeningBalance(ctx context.Context, id int64, amount int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET opening_balance=$2, updated_at=NOW() WHERE id=$1`, id, amount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) CountAccountPostings(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM postings WHERE account_id=$1`, id).Scan(&count)
	return count, err
}

func (r *txRepository) CountAccountRefs(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT (SELECT COUNT(*) FROM postings WHERE account_id=$1) + (SELECT COUNT(*) FROM finances WHERE account_id=$1)`, id).Scan(&count)
	return count, err
}

func (r *txRepository) GetGroupForUpdate(ctx context.Context, id int64) (AccountGroup, error) {
	var g AccountGroup
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, category, normal_side, created_at, updated_at FROM account_groups WHERE id=$1 FOR UPDATE`, id).
		Scan(&g.ID, &g.Code, &g.Name, &g.Category, &g.NormalSide, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountGroup{}, ErrGroupNotFound
		}
		return AccountGroup{}, err
	}
	return g, nil
}

func (r *txRepository) MaxChildSuffix(ctx context.Context, groupID int64) (int, error) {
	var max *int
	err := r.tx.QueryRow(ctx, `SELECT MAX(CAST(RIGHT(code, 3) AS INTEGER)) FROM accounts WHERE group_id=$1`, groupID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *txRepository) EnsureOperation(ctx context.Context, id uuid.UUID, reference string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO business_operations (id, reference) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`, id, reference)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReferenceTaken
		}
		return err
	}
	return nil
}

func (r *txRepository) MaxReferenceSeq(ctx context.Context, prefix string, userID int64, day time.Time) (int, error) {
	pattern := FormatReference(prefix, day, userID, 0)
	// Strip the zero sequence and match any suffix.
	pattern = pattern[:len(pattern)-7] + "%"
	var max *int
	err := r.tx.QueryRow(ctx, `SELECT MAX(CAST(SPLIT_PART(reference, '.', 5) AS INTEGER)) FROM business_operations WHERE reference LIKE $1`, pattern).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

const entryColumns = `id, operation_id, reference, date_issued, description, source, warehouse_id, user_id, status, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.OperationID, &e.Reference, &e.DateIssued, &e.Description, &e.Source, &e.WarehouseID, &e.UserID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, in EntryInput) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (operation_id, reference, date_issued, description, source, warehouse_id, user_id, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,'ACTIVE') RETURNING id, created_at, updated_at`,
		in.OperationID, in.Reference, in.DateIssued, in.Description, in.Source, in.WarehouseID, in.UserID)
	entry := JournalEntry{
		OperationID: in.OperationID,
		Reference:   in.Reference,
		DateIssued:  in.DateIssued,
		Description: in.Description,
		Source:      in.Source,
		WarehouseID: in.WarehouseID,
		UserID:      in.UserID,
		Status:      EntryStatusActive,
	}
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertPostings(ctx context.Context, entryID int64, lines []PostingInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO postings (entry_id, account_id, debit, credit) VALUES ($1,$2,$3,$4)`,
			entryID, line.AccountID, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetEntryWithPostings(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	postings, err := r.entryPostings(ctx, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Postings = postings
	return entry, nil
}

func (r *txRepository) entryPostings(ctx context.Context, entryID int64) ([]Posting, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, created_at FROM postings WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var postings []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.ID, &p.EntryID, &p.AccountID, &p.Debit, &p.Credit, &p.CreatedAt); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) CountActiveDependents(ctx context.Context, operationID uuid.UUID, excludeEntryID int64) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM finances WHERE operation_id=$1 AND voided=FALSE)
+ (SELECT COUNT(*) FROM stock_movements WHERE operation_id=$1 AND voided=FALSE)
+ (SELECT COUNT(*) FROM journal_entries WHERE operation_id=$1 AND status='ACTIVE' AND id<>$2)`,
		operationID, excludeEntryID).Scan(&count)
	return count, err
}

func (r *txRepository) queryEntries(ctx context.Context, query string, args ...any) ([]JournalEntry, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		postings, err := r.entryPostings(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Postings = postings
	}
	return entries, nil
}

func (r *txRepository) FindByReference(ctx context.Context, reference string) ([]JournalEntry, error) {
	return r.queryEntries(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE reference=$1 ORDER BY date_issued ASC, id ASC`, reference)
}

func (r *txRepository) FindByAccountAndDateRange(ctx context.Context, accountID int64, from, to time.Time) ([]JournalEntry, error) {
	return r.queryEntries(ctx, `SELECT DISTINCT e.id, e.operation_id, e.reference, e.date_issued, e.description, e.source, e.warehouse_id, e.user_id, e.status, e.created_at, e.updated_at
FROM journal_entries e JOIN postings p ON p.entry_id = e.id
WHERE p.account_id=$1 AND e.date_issued BETWEEN $2 AND $3
ORDER BY e.date_issued ASC, e.id ASC`, accountID, from, to)
}

func (r *txRepository) SumPostings(ctx context.Context, accountID int64, from, to *time.Time) (int64, int64, error) {
	var debit, credit int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(p.debit),0), COALESCE(SUM(p.credit),0)
FROM postings p JOIN journal_entries e ON e.id = p.entry_id
WHERE p.account_id=$1 AND e.status='ACTIVE'
  AND ($2::timestamptz IS NULL OR e.date_issued >= $2)
  AND ($3::timestamptz IS NULL OR e.date_issued <= $3)`, accountID, from, to).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *txRepository) ListAccountBalances(ctx context.Context, from, to *time.Time) ([]AccountBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.`+accountColumns+`, COALESCE(s.debit,0), COALESCE(s.credit,0)
FROM accounts a
LEFT JOIN (
  SELECT p.account_id, SUM(p.debit) AS debit, SUM(p.credit) AS credit
  FROM postings p JOIN journal_entries e ON e.id = p.entry_id
  WHERE e.status='ACTIVE'
    AND ($1::timestamptz IS NULL OR e.date_issued >= $1)
    AND ($2::timestamptz IS NULL OR e.date_issued <= $2)
  GROUP BY p.account_id
) s ON s.account_id = a.id
ORDER BY a.code`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.ID, &b.GroupID, &b.Code, &b.Name, &b.Category, &b.NormalSide, &b.OpeningBalance, &b.IsCashBank, &b.Locked, &b.WarehouseID, &b.CreatedAt, &b.UpdatedAt, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *txRepository) SumCashActivityBySource(ctx context.Context, from, to time.Time) (map[SourceType]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.source, SUM(CASE WHEN a.normal_side='D' THEN p.debit - p.credit ELSE p.credit - p.debit END)
FROM postings p
JOIN journal_entries e ON e.id = p.entry_id
JOIN accounts a ON a.id = p.account_id
WHERE a.is_cash_bank AND e.status='ACTIVE' AND e.date_issued BETWEEN $1 AND $2
GROUP BY e.source`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	activity := make(map[SourceType]int64)
	for rows.Next() {
		var source SourceType
		var amount int64
		if err := rows.Scan(&source, &amount); err != nil {
			return nil, err
		}
		activity[source] = amount
	}
	return activity, rows.Err()
}

// ListUnbalancedReferences returns references of ACTIVE entries whose posting
// sums disagree. The posting validator makes this unreachable through the API;
// the nightly integrity job checks anyway.
func (r *txRepository) ListUnbalancedReferences(ctx context.Context) ([]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.reference
FROM journal_entries e JOIN postings p ON p.entry_id = e.id
WHERE e.status='ACTIVE'
GROUP BY e.id, e.reference
HAVING SUM(p.debit) <> SUM(p.credit)
ORDER BY e.reference`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var references []string
	for rows.Next() {
		var reference string
		if err := rows.Scan(&reference); err != nil {
			return nil, err
		}
		references = append(references, reference)
	}
	return references, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
