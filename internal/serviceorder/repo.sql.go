package serviceorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNumberTaken indicates the unique order number constraint fired; the
// service regenerates the number once before giving up.
var ErrNumberTaken = errors.New("serviceorder: order number already taken")

// Repository persists service orders in PostgreSQL.
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
		return errors.New("serviceorder repository not initialised")
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

const orderColumns = `id, order_number, date_issued, customer_name, description, phone_number, phone_type, address, status, user_id, technician_id, warehouse_id, contact_id, parts_operation_id, entry_id, created_at, updated_at`

func (r *txRepository) InsertOrder(ctx context.Context, order Order) (Order, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO service_orders
(order_number, date_issued, customer_name, description, phone_number, phone_type, address, status, user_id, technician_id, warehouse_id, contact_id, parts_operation_id, entry_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		order.OrderNumber, order.DateIssued, order.CustomerName, order.Description,
		order.PhoneNumber, order.PhoneType, order.Address, string(order.Status),
		order.UserID, nullInt(order.TechnicianID), order.WarehouseID, nullInt(order.ContactID),
		nullUUID(order.PartsOperationID), nullInt(order.EntryID)).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Order{}, ErrNumberTaken
		}
		return Order{}, err
	}
	return order, nil
}

func (r *txRepository) GetByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return r.getByNumber(ctx, orderNumber, "")
}

func (r *txRepository) GetByNumberForUpdate(ctx context.Context, orderNumber string) (Order, error) {
	return r.getByNumber(ctx, orderNumber, " FOR UPDATE")
}

func (r *txRepository) getByNumber(ctx context.Context, orderNumber, suffix string) (Order, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE order_number=$1`+suffix, orderNumber)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return order, err
}

func (r *txRepository) UpdateOrder(ctx context.Context, order Order) (Order, error) {
	err := r.tx.QueryRow(ctx, `UPDATE service_orders SET
status=$2, technician_id=$3, contact_id=$4, parts_operation_id=$5, entry_id=$6, updated_at=NOW()
WHERE id=$1 RETURNING updated_at`,
		order.ID, string(order.Status), nullInt(order.TechnicianID), nullInt(order.ContactID),
		nullUUID(order.PartsOperationID), nullInt(order.EntryID)).
		Scan(&order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *txRepository) ListOrders(ctx context.Context, search string, limit, offset int) ([]Order, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+orderColumns+` FROM service_orders
WHERE order_number ILIKE $1 OR customer_name ILIKE $1 OR phone_number ILIKE $1
ORDER BY order_number DESC
LIMIT $2 OFFSET $3`, "%"+search+"%", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (r *txRepository) MaxOrderSeq(ctx context.Context, warehouseID, userID int64, day time.Time) (int, error) {
	pattern := fmt.Sprintf("ORDER-%d-%s-%d-%%", warehouseID, day.Format(orderDateLayout), userID)
	var max int
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(SPLIT_PART(order_number, '-', 5) AS INTEGER)), 0)
FROM service_orders WHERE warehouse_id=$1 AND user_id=$2 AND order_number LIKE $3`,
		warehouseID, userID, pattern).Scan(&max)
	return max, err
}

func (r *txRepository) InsertPart(ctx context.Context, part Part) (Part, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO service_order_parts
(order_id, product_id, quantity, unit_price, unit_cost, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id, created_at`,
		part.OrderID, part.ProductID, part.Quantity, part.UnitPrice, part.UnitCost).
		Scan(&part.ID, &part.CreatedAt)
	if err != nil {
		return Part{}, err
	}
	return part, nil
}

func (r *txRepository) ListParts(ctx context.Context, orderID int64) ([]Part, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, unit_cost, created_at
FROM service_order_parts WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Part
	for rows.Next() {
		var part Part
		if err := rows.Scan(&part.ID, &part.OrderID, &part.ProductID, &part.Quantity,
			&part.UnitPrice, &part.UnitCost, &part.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	var status string
	var technicianID, contactID, entryID *int64
	var partsOp *uuid.UUID
	err := row.Scan(&order.ID, &order.OrderNumber, &order.DateIssued, &order.CustomerName,
		&order.Description, &order.PhoneNumber, &order.PhoneType, &order.Address, &status,
		&order.UserID, &technicianID, &order.WarehouseID, &contactID, &partsOp, &entryID,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	order.Status = Status(status)
	if technicianID != nil {
		order.TechnicianID = *technicianID
	}
	if contactID != nil {
		order.ContactID = *contactID
	}
	if partsOp != nil {
		order.PartsOperationID = *partsOp
	}
	if entryID != nil {
		order.EntryID = *entryID
	}
	return order, nil
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

func nullUUID(value uuid.UUID) any {
	if value == uuid.Nil {
		return nil
	}
	return value
}
