package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate indicates a unique constraint fired (email or product code).
var ErrDuplicate = errors.New("directory: duplicate value")

// Repository persists directory master data in PostgreSQL.
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
		return errors.New("directory repository not initialised")
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

func (r *txRepository) InsertUser(ctx context.Context, user User) (User, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO users (name, email, password_hash, warehouse_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		user.Name, user.Email, user.PasswordHash, nullInt(user.WarehouseID)).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	return user, nil
}

func (r *txRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	var warehouseID *int64
	err := r.tx.QueryRow(ctx, `SELECT id, name, email, password_hash, warehouse_id, created_at, updated_at
FROM users WHERE LOWER(email)=LOWER($1)`, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &warehouseID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	if warehouseID != nil {
		user.WarehouseID = *warehouseID
	}
	return user, nil
}

func (r *txRepository) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	var warehouseID *int64
	err := r.tx.QueryRow(ctx, `SELECT id, name, email, password_hash, warehouse_id, created_at, updated_at
FROM users WHERE id=$1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &warehouseID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	if warehouseID != nil {
		user.WarehouseID = *warehouseID
	}
	return user, nil
}

func (r *txRepository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.tx.QueryRow(ctx, `SELECT id, name, address, phone, created_at, updated_at FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Name, &w.Address, &w.Phone, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return w, err
}

func (r *txRepository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, address, phone, created_at, updated_at FROM warehouses ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Address, &w.Phone, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouses (name, address, phone, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id, created_at, updated_at`, w.Name, w.Address, w.Phone).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (r *txRepository) GetContact(ctx context.Context, id int64) (Contact, error) {
	var c Contact
	err := r.tx.QueryRow(ctx, `SELECT id, name, phone, address, created_at, updated_at FROM contacts WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

func (r *txRepository) GetContactByPhone(ctx context.Context, phone string) (Contact, error) {
	var c Contact
	err := r.tx.QueryRow(ctx, `SELECT id, name, phone, address, created_at, updated_at FROM contacts
WHERE phone=$1 ORDER BY id ASC LIMIT 1`, phone).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

func (r *txRepository) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, phone, address, created_at, updated_at FROM contacts ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertContact(ctx context.Context, c Contact) (Contact, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO contacts (name, phone, address, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id, created_at, updated_at`, c.Name, c.Phone, c.Address).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *txRepository) GetCategoryForUpdate(ctx context.Context, id int64) (ProductCategory, error) {
	var cat ProductCategory
	err := r.tx.QueryRow(ctx, `SELECT id, name, prefix, created_at FROM product_categories WHERE id=$1 FOR UPDATE`, id).
		Scan(&cat.ID, &cat.Name, &cat.Prefix, &cat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductCategory{}, ErrCategoryNotFound
	}
	return cat, err
}

func (r *txRepository) MaxProductSeq(ctx context.Context, categoryID int64) (int, error) {
	var max int
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(RIGHT(code, 4) AS INTEGER)), 0)
FROM products WHERE category_id=$1 AND deleted_at IS NULL`, categoryID).Scan(&max)
	return max, err
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) (Product, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO products (code, name, category_id, sale_price, is_service, current_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		p.Code, p.Name, p.CategoryID, p.SalePrice, p.IsService).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrDuplicate
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, category_id, sale_price, is_service, created_at, updated_at
FROM products WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.SalePrice, &p.IsService, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (r *txRepository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, category_id, sale_price, is_service, created_at, updated_at
FROM products WHERE deleted_at IS NULL ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.SalePrice, &p.IsService, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
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
