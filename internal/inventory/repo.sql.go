package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
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
		return errors.New("inventory repository not initialised")
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

func (r *txRepository) GetProduct(ctx context.Context, id int64) (ProductCosting, error) {
	var p ProductCosting
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, current_cost, sale_price, is_service
FROM products WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.CurrentCost, &p.SalePrice, &p.IsService)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductCosting{}, ErrProductNotFound
		}
		return ProductCosting{}, err
	}
	return p, nil
}

func (r *txRepository) SetProductCost(ctx context.Context, id int64, cost int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET current_cost=$2, updated_at=NOW() WHERE id=$1`, id, cost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, in MovementInput) (StockMovement, error) {
	m := StockMovement{
		ProductID:   in.ProductID,
		WarehouseID: in.WarehouseID,
		OperationID: in.OperationID,
		Date:        in.Date,
		Quantity:    in.Quantity,
		UnitCost:    in.UnitCost,
		UnitPrice:   in.UnitPrice,
		Type:        in.Type,
		IsInitial:   in.IsInitial,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(product_id, warehouse_id, operation_id, date, quantity, unit_cost, unit_price, movement_type, is_initial, voided, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,FALSE,NOW(),NOW())
RETURNING id, created_at`,
		in.ProductID, in.WarehouseID, in.OperationID, in.Date, in.Quantity, in.UnitCost, in.UnitPrice,
		string(in.Type), in.IsInitial).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return StockMovement{}, err
	}
	return m, nil
}

const movementColumns = `id, product_id, warehouse_id, operation_id, date, quantity, unit_cost, unit_price, movement_type, is_initial, voided, created_at`

func (r *txRepository) ListMovementsByProduct(ctx context.Context, productID int64) ([]StockMovement, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+movementColumns+`
FROM stock_movements WHERE product_id=$1 AND voided=FALSE
ORDER BY date ASC, id ASC`, productID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (r *txRepository) ListMovementsByOperation(ctx context.Context, operationID uuid.UUID) ([]StockMovement, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+movementColumns+`
FROM stock_movements WHERE operation_id=$1
ORDER BY date ASC, id ASC`, operationID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (r *txRepository) VoidMovementsByOperation(ctx context.Context, operationID uuid.UUID) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_movements SET voided=TRUE, updated_at=NOW()
WHERE operation_id=$1 AND voided=FALSE`, operationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) SumQuantity(ctx context.Context, productID, warehouseID int64) (int64, error) {
	var qty int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_movements
WHERE product_id=$1 AND warehouse_id=$2 AND voided=FALSE`, productID, warehouseID).Scan(&qty)
	return qty, err
}

func (r *txRepository) InitialStock(ctx context.Context, productID, warehouseID int64) (int64, error) {
	var qty int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(init_stock, 0) FROM product_stocks
WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func scanMovements(rows pgx.Rows) ([]StockMovement, error) {
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		var movementType string
		var date, createdAt time.Time
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.OperationID, &date, &m.Quantity,
			&m.UnitCost, &m.UnitPrice, &movementType, &m.IsInitial, &m.Voided, &createdAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(movementType)
		m.Date = date
		m.CreatedAt = createdAt
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
