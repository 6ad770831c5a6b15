package directory

import "context"

// RepositoryPort abstracts transactional repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one transaction.
type TxRepository interface {
	InsertUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)

	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	InsertWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error)

	GetContact(ctx context.Context, id int64) (Contact, error)
	GetContactByPhone(ctx context.Context, phone string) (Contact, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	InsertContact(ctx context.Context, contact Contact) (Contact, error)

	// GetCategoryForUpdate serialises concurrent product-code allocation
	// under the same prefix.
	GetCategoryForUpdate(ctx context.Context, id int64) (ProductCategory, error)
	MaxProductSeq(ctx context.Context, categoryID int64) (int, error)
	InsertProduct(ctx context.Context, product Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}
