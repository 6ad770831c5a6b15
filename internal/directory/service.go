package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arkabooks/arkabooks/internal/shared"
)

// ActivityPort records directory events for the activity trail.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service manages users, warehouses, contacts and product master data.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
	now      func() time.Time
}

// NewService constructs the directory service.
func NewService(repo RepositoryPort, activity ActivityPort) *Service {
	return &Service{repo: repo, activity: activity, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateUser hashes the password with bcrypt and stores the account.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	if err := input.Validate(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	var user User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.WarehouseID != 0 {
			if _, err := tx.GetWarehouse(ctx, input.WarehouseID); err != nil {
				return err
			}
		}
		user, err = tx.InsertUser(ctx, User{
			Name:         strings.TrimSpace(input.Name),
			Email:        strings.ToLower(strings.TrimSpace(input.Email)),
			PasswordHash: string(hash),
			WarehouseID:  input.WarehouseID,
		})
		if errors.Is(err, ErrDuplicate) {
			return ErrEmailTaken
		}
		return err
	})
	if err != nil {
		return User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies an email/password pair and returns the user on
// success. The hash never leaves this function.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	var user User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		user, err = tx.GetUserByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	user.PasswordHash = ""
	return user, nil
}

// CreateProduct allocates the next code under the category prefix and
// inserts the product. A lost code race is retried once.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	if err := input.Validate(); err != nil {
		return Product{}, err
	}
	product, err := s.createProductOnce(ctx, input)
	if errors.Is(err, ErrDuplicate) {
		product, err = s.createProductOnce(ctx, input)
		if errors.Is(err, ErrDuplicate) {
			return Product{}, ErrCodeConflict
		}
	}
	if err != nil {
		return Product{}, err
	}
	if s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			Action:   "product.create",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", product.ID),
			Meta:     map[string]any{"code": product.Code, "name": product.Name},
			At:       s.now(),
		})
	}
	return product, nil
}

func (s *Service) createProductOnce(ctx context.Context, input CreateProductInput) (Product, error) {
	var product Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		category, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}
		seq, err := tx.MaxProductSeq(ctx, category.ID)
		if err != nil {
			return err
		}
		product, err = tx.InsertProduct(ctx, Product{
			Code:       ProductCode(category.Prefix, seq+1),
			Name:       strings.TrimSpace(input.Name),
			CategoryID: category.ID,
			SalePrice:  input.SalePrice,
			IsService:  input.IsService,
		})
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// GetProduct fetches one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		product, err = tx.GetProduct(ctx, id)
		return err
	})
	return product, err
}

// ListProducts lists the catalogue ordered by code.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		products, err = tx.ListProducts(ctx)
		return err
	})
	return products, err
}

// CreateWarehouse stores a new stock location.
func (s *Service) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	if strings.TrimSpace(warehouse.Name) == "" {
		return Warehouse{}, errors.New("directory: warehouse name required")
	}
	var created Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertWarehouse(ctx, warehouse)
		return err
	})
	return created, err
}

// ListWarehouses lists stock locations.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var warehouses []Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		warehouses, err = tx.ListWarehouses(ctx)
		return err
	})
	return warehouses, err
}

// CreateContact stores a customer or supplier.
func (s *Service) CreateContact(ctx context.Context, contact Contact) (Contact, error) {
	if strings.TrimSpace(contact.Name) == "" {
		return Contact{}, errors.New("directory: contact name required")
	}
	var created Contact
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertContact(ctx, contact)
		return err
	})
	return created, err
}

// EnsureContactByPhone returns the contact registered under the phone
// number, creating one from the given details when none exists.
func (s *Service) EnsureContactByPhone(ctx context.Context, contact Contact) (Contact, error) {
	if strings.TrimSpace(contact.Phone) == "" {
		return Contact{}, errors.New("directory: contact phone required")
	}
	if strings.TrimSpace(contact.Name) == "" {
		return Contact{}, errors.New("directory: contact name required")
	}
	var out Contact
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetContactByPhone(ctx, contact.Phone)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, ErrContactNotFound) {
			return err
		}
		out, err = tx.InsertContact(ctx, contact)
		return err
	})
	return out, err
}

// ListContacts lists customers and suppliers.
func (s *Service) ListContacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		contacts, err = tx.ListContacts(ctx)
		return err
	})
	return contacts, err
}
