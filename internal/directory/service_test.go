package directory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arkabooks/arkabooks/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	users      map[int64]User
	warehouses map[int64]Warehouse
	contacts   map[int64]Contact
	categories map[int64]ProductCategory
	products   map[int64]Product

	failDuplicateProduct int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:     1,
		users:      map[int64]User{},
		warehouses: map[int64]Warehouse{},
		contacts:   map[int64]Contact{},
		categories: map[int64]ProductCategory{},
		products:   map[int64]Product{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) InsertUser(_ context.Context, user User) (User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return User{}, ErrDuplicate
		}
	}
	user.ID = m.id()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryRepo) GetUser(_ context.Context, id int64) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryRepo) GetWarehouse(_ context.Context, id int64) (Warehouse, error) {
	warehouse, ok := m.warehouses[id]
	if !ok {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return warehouse, nil
}

func (m *memoryRepo) ListWarehouses(_ context.Context) ([]Warehouse, error) {
	out := make([]Warehouse, 0, len(m.warehouses))
	for _, warehouse := range m.warehouses {
		out = append(out, warehouse)
	}
	return out, nil
}

func (m *memoryRepo) InsertWarehouse(_ context.Context, warehouse Warehouse) (Warehouse, error) {
	warehouse.ID = m.id()
	m.warehouses[warehouse.ID] = warehouse
	return warehouse, nil
}

func (m *memoryRepo) GetContact(_ context.Context, id int64) (Contact, error) {
	contact, ok := m.contacts[id]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	return contact, nil
}

func (m *memoryRepo) GetContactByPhone(_ context.Context, phone string) (Contact, error) {
	var found Contact
	for _, contact := range m.contacts {
		if contact.Phone == phone && (found.ID == 0 || contact.ID < found.ID) {
			found = contact
		}
	}
	if found.ID == 0 {
		return Contact{}, ErrContactNotFound
	}
	return found, nil
}

func (m *memoryRepo) ListContacts(_ context.Context) ([]Contact, error) {
	out := make([]Contact, 0, len(m.contacts))
	for _, contact := range m.contacts {
		out = append(out, contact)
	}
	return out, nil
}

func (m *memoryRepo) InsertContact(_ context.Context, contact Contact) (Contact, error) {
	contact.ID = m.id()
	m.contacts[contact.ID] = contact
	return contact, nil
}

func (m *memoryRepo) GetCategoryForUpdate(_ context.Context, id int64) (ProductCategory, error) {
	category, ok := m.categories[id]
	if !ok {
		return ProductCategory{}, ErrCategoryNotFound
	}
	return category, nil
}

func (m *memoryRepo) MaxProductSeq(_ context.Context, categoryID int64) (int, error) {
	max := 0
	for _, product := range m.products {
		if product.CategoryID != categoryID {
			continue
		}
		seq := 0
		for _, r := range product.Code {
			if r >= '0' && r <= '9' {
				seq = seq*10 + int(r-'0')
			}
		}
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

func (m *memoryRepo) InsertProduct(_ context.Context, product Product) (Product, error) {
	if m.failDuplicateProduct > 0 {
		m.failDuplicateProduct--
		return Product{}, ErrDuplicate
	}
	for _, existing := range m.products {
		if existing.Code == product.Code {
			return Product{}, ErrDuplicate
		}
	}
	product.ID = m.id()
	m.products[product.ID] = product
	return product, nil
}

func (m *memoryRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	product, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

func (m *memoryRepo) ListProducts(_ context.Context) ([]Product, error) {
	out := make([]Product, 0, len(m.products))
	for _, product := range m.products {
		out = append(out, product)
	}
	return out, nil
}

type recordingActivity struct {
	mu   sync.Mutex
	logs []shared.ActivityLog
}

func (r *recordingActivity) Record(_ context.Context, log shared.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func newTestService(repo *memoryRepo) (*Service, *recordingActivity) {
	activity := &recordingActivity{}
	service := NewService(repo, activity)
	service.WithNow(func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) })
	return service, activity
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	user, err := service.CreateUser(context.Background(), CreateUserInput{
		Name:     "Rina",
		Email:    "Rina@Example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	require.Equal(t, "rina@example.com", user.Email)
	require.Empty(t, user.PasswordHash)

	stored := repo.users[user.ID]
	require.NotEqual(t, "hunter2hunter2", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")))
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	_, err := service.CreateUser(context.Background(), CreateUserInput{Name: "Rina", Email: "rina@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	_, err = service.CreateUser(context.Background(), CreateUserInput{Name: "Other", Email: "rina@example.com", Password: "hunter2hunter2"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateUserChecksWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	_, err := service.CreateUser(context.Background(), CreateUserInput{
		Name:        "Rina",
		Email:       "rina@example.com",
		Password:    "hunter2hunter2",
		WarehouseID: 99,
	})
	require.ErrorIs(t, err, ErrWarehouseNotFound)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	_, err := service.CreateUser(context.Background(), CreateUserInput{Name: "Rina", Email: "rina@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	user, err := service.Authenticate(context.Background(), "rina@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, "Rina", user.Name)
	require.Empty(t, user.PasswordHash)

	_, err = service.Authenticate(context.Background(), "rina@example.com", "wrongpassword")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Authenticate(context.Background(), "nobody@example.com", "hunter2hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateProductAllocatesSequentialCodes(t *testing.T) {
	repo := newMemoryRepo()
	repo.categories[1] = ProductCategory{ID: 1, Name: "Electronics", Prefix: "EL"}
	service, activity := newTestService(repo)

	first, err := service.CreateProduct(context.Background(), CreateProductInput{Name: "Kettle", CategoryID: 1, SalePrice: 250_000})
	require.NoError(t, err)
	require.Equal(t, "EL0001", first.Code)

	second, err := service.CreateProduct(context.Background(), CreateProductInput{Name: "Toaster", CategoryID: 1, SalePrice: 180_000})
	require.NoError(t, err)
	require.Equal(t, "EL0002", second.Code)

	require.Len(t, activity.logs, 2)
	require.Equal(t, "product.create", activity.logs[0].Action)
}

func TestCreateProductRetriesOnCodeCollision(t *testing.T) {
	repo := newMemoryRepo()
	repo.categories[1] = ProductCategory{ID: 1, Name: "Electronics", Prefix: "EL"}
	service, _ := newTestService(repo)

	repo.failDuplicateProduct = 1
	product, err := service.CreateProduct(context.Background(), CreateProductInput{Name: "Kettle", CategoryID: 1, SalePrice: 250_000})
	require.NoError(t, err)
	require.Equal(t, "EL0001", product.Code)

	repo.failDuplicateProduct = 2
	_, err = service.CreateProduct(context.Background(), CreateProductInput{Name: "Toaster", CategoryID: 1, SalePrice: 180_000})
	require.ErrorIs(t, err, ErrCodeConflict)
}

func TestCreateProductUnknownCategory(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	_, err := service.CreateProduct(context.Background(), CreateProductInput{Name: "Kettle", CategoryID: 7, SalePrice: 250_000})
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestEnsureContactByPhone(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	created, err := service.EnsureContactByPhone(context.Background(), Contact{
		Name:    "Budi",
		Phone:   "0812-0001",
		Address: "Jl. Melati 3",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// Same phone returns the existing row; details are not overwritten.
	again, err := service.EnsureContactByPhone(context.Background(), Contact{
		Name:  "B. Santoso",
		Phone: "0812-0001",
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)
	require.Equal(t, "Budi", again.Name)
	require.Len(t, repo.contacts, 1)
}
