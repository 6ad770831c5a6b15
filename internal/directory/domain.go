package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is an operator account. The core performs no authorization; users
// exist so entries and movements carry a real actor foreign key.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	WarehouseID  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Warehouse is a stock location and the owning scope of cash accounts.
type Warehouse struct {
	ID        int64
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact is a customer or supplier referenced by AR/AP records.
type Contact struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductCategory carries the code prefix under which product codes are
// allocated, e.g. "EL" yields "EL0001".
type ProductCategory struct {
	ID        int64
	Name      string
	Prefix    string
	CreatedAt time.Time
}

// Product is catalogue master data. Costing state (current cost, stock)
// belongs to the inventory module; this row owns identity and pricing.
type Product struct {
	ID         int64
	Code       string
	Name       string
	CategoryID int64
	SalePrice  int64
	IsService  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductCode builds `{categoryPrefix}{%04d}`.
func ProductCode(prefix string, seq int) string {
	return fmt.Sprintf("%s%04d", strings.ToUpper(prefix), seq)
}

// CreateUserInput carries user creation parameters. Password arrives in
// plain text and is hashed before storage.
type CreateUserInput struct {
	Name        string
	Email       string
	Password    string
	WarehouseID int64
}

// CreateProductInput carries product creation parameters. The code is
// allocated from the category prefix.
type CreateProductInput struct {
	Name       string
	CategoryID int64
	SalePrice  int64
	IsService  bool
}

var (
	// ErrUserNotFound indicates a missing user.
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrEmailTaken indicates a duplicate email.
	ErrEmailTaken = errors.New("directory: email already registered")
	// ErrInvalidCredentials indicates a failed email/password check.
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
	// ErrWarehouseNotFound indicates a missing warehouse.
	ErrWarehouseNotFound = errors.New("directory: warehouse not found")
	// ErrContactNotFound indicates a missing contact.
	ErrContactNotFound = errors.New("directory: contact not found")
	// ErrCategoryNotFound indicates a missing product category.
	ErrCategoryNotFound = errors.New("directory: product category not found")
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = errors.New("directory: product not found")
	// ErrCodeConflict indicates the product code race was lost twice.
	ErrCodeConflict = errors.New("directory: product code conflict")
)

// Validate checks user input shape.
func (in CreateUserInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("directory: user name required")
	}
	if !strings.Contains(in.Email, "@") {
		return errors.New("directory: valid email required")
	}
	if len(in.Password) < 8 {
		return errors.New("directory: password must be at least 8 characters")
	}
	return nil
}

// Validate checks product input shape.
func (in CreateProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("directory: product name required")
	}
	if in.CategoryID == 0 {
		return ErrCategoryNotFound
	}
	if in.SalePrice < 0 {
		return errors.New("directory: sale price must be non-negative")
	}
	return nil
}
