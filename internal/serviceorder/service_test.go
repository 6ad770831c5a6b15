package serviceorder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arkabooks/arkabooks/internal/directory"
	"github.com/arkabooks/arkabooks/internal/finance"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	nextOrderID int64
	nextPartID  int64
	orders      map[string]Order
	parts       map[int64][]Part

	failNumberTaken int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[string]Order{}, parts: map[int64][]Part{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepo) InsertOrder(_ context.Context, order Order) (Order, error) {
	if m.failNumberTaken > 0 {
		m.failNumberTaken--
		return Order{}, ErrNumberTaken
	}
	if _, exists := m.orders[order.OrderNumber]; exists {
		return Order{}, ErrNumberTaken
	}
	m.nextOrderID++
	order.ID = m.nextOrderID
	m.orders[order.OrderNumber] = order
	return order, nil
}

func (m *memoryRepo) GetByNumber(_ context.Context, orderNumber string) (Order, error) {
	order, ok := m.orders[orderNumber]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (m *memoryRepo) GetByNumberForUpdate(ctx context.Context, orderNumber string) (Order, error) {
	return m.GetByNumber(ctx, orderNumber)
}

func (m *memoryRepo) UpdateOrder(_ context.Context, order Order) (Order, error) {
	for number, existing := range m.orders {
		if existing.ID == order.ID {
			m.orders[number] = order
			return order, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (m *memoryRepo) ListOrders(_ context.Context, search string, limit, offset int) ([]Order, error) {
	var out []Order
	for _, order := range m.orders {
		if search == "" || strings.Contains(order.OrderNumber, search) ||
			strings.Contains(order.CustomerName, search) {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *memoryRepo) MaxOrderSeq(_ context.Context, warehouseID, userID int64, day time.Time) (int, error) {
	prefix := fmt.Sprintf("ORDER-%d-%s-%d-", warehouseID, day.Format(orderDateLayout), userID)
	max := 0
	for number := range m.orders {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		if seq, err := strconv.Atoi(strings.TrimPrefix(number, prefix)); err == nil && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (m *memoryRepo) InsertPart(_ context.Context, part Part) (Part, error) {
	m.nextPartID++
	part.ID = m.nextPartID
	m.parts[part.OrderID] = append(m.parts[part.OrderID], part)
	return part, nil
}

func (m *memoryRepo) ListParts(_ context.Context, orderID int64) ([]Part, error) {
	return m.parts[orderID], nil
}

type fakeLedger struct {
	entries []ledger.EntryInput
	voided  []int64
	nextID  int64
}

func (f *fakeLedger) PostEntry(_ context.Context, input ledger.EntryInput) (ledger.JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return ledger.JournalEntry{}, err
	}
	f.nextID++
	f.entries = append(f.entries, input)
	return ledger.JournalEntry{
		ID:          f.nextID,
		OperationID: input.OperationID,
		Source:      input.Source,
		Status:      ledger.EntryStatusActive,
	}, nil
}

func (f *fakeLedger) VoidEntry(_ context.Context, input ledger.VoidInput) (ledger.JournalEntry, error) {
	f.voided = append(f.voided, input.EntryID)
	return ledger.JournalEntry{ID: input.EntryID, Status: ledger.EntryStatusVoided}, nil
}

type fakeInventory struct {
	costs      map[int64]int64
	movements  []inventory.MovementInput
	voidedOps  []uuid.UUID
	moveErr    error
	failMoveOn int64
}

func (f *fakeInventory) RecordMovement(_ context.Context, input inventory.MovementInput) (inventory.StockMovement, error) {
	if f.moveErr != nil && (f.failMoveOn == 0 || f.failMoveOn == input.ProductID) {
		return inventory.StockMovement{}, f.moveErr
	}
	f.movements = append(f.movements, input)
	return inventory.StockMovement{ID: int64(len(f.movements)), ProductID: input.ProductID, Quantity: input.Quantity}, nil
}

func (f *fakeInventory) CurrentCost(_ context.Context, productID int64) (int64, error) {
	cost, ok := f.costs[productID]
	if !ok {
		return 0, inventory.ErrProductNotFound
	}
	return cost, nil
}

func (f *fakeInventory) VoidOperationMovements(_ context.Context, operationID uuid.UUID, _ int64) (int64, error) {
	var voided int64
	for _, movement := range f.movements {
		if movement.OperationID == operationID {
			voided++
		}
	}
	f.voidedOps = append(f.voidedOps, operationID)
	return voided, nil
}

func (f *fakeInventory) liveMovements(operationID uuid.UUID) int {
	for _, op := range f.voidedOps {
		if op == operationID {
			return 0
		}
	}
	n := 0
	for _, movement := range f.movements {
		if movement.OperationID == operationID {
			n++
		}
	}
	return n
}

type fakeFinance struct {
	bills     []finance.BillInput
	voidedOps []uuid.UUID
	billErr   error
}

func (f *fakeFinance) CreateBill(_ context.Context, input finance.BillInput) (finance.Record, error) {
	if f.billErr != nil {
		return finance.Record{}, f.billErr
	}
	f.bills = append(f.bills, input)
	return finance.Record{ID: int64(len(f.bills)), Type: input.Type, OperationID: input.OperationID, BillAmount: input.BillAmount}, nil
}

func (f *fakeFinance) VoidOperation(_ context.Context, operationID uuid.UUID, _ int64) (int64, error) {
	f.voidedOps = append(f.voidedOps, operationID)
	return 0, nil
}

type fakeContacts struct {
	contacts map[string]directory.Contact
	nextID   int64
}

func (f *fakeContacts) EnsureContactByPhone(_ context.Context, contact directory.Contact) (directory.Contact, error) {
	if f.contacts == nil {
		f.contacts = map[string]directory.Contact{}
	}
	if existing, ok := f.contacts[contact.Phone]; ok {
		return existing, nil
	}
	f.nextID++
	contact.ID = f.nextID
	f.contacts[contact.Phone] = contact
	return contact, nil
}

type recordingActivity struct {
	logs []shared.ActivityLog
}

func (r *recordingActivity) Record(_ context.Context, log shared.ActivityLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingActivity) actions() []string {
	out := make([]string, 0, len(r.logs))
	for _, log := range r.logs {
		out = append(out, log.Action)
	}
	return out
}

func wellKnown() *ledger.WellKnownAccounts {
	return ledger.NewWellKnownAccounts(map[ledger.WellKnownKey]int64{
		ledger.WellKnownCash:             1,
		ledger.WellKnownBank:             2,
		ledger.WellKnownInventory:        3,
		ledger.WellKnownCOGS:             4,
		ledger.WellKnownEquityPlug:       5,
		ledger.WellKnownCurrentEarnings:  6,
		ledger.WellKnownIncomeFromSales:  7,
		ledger.WellKnownPurchaseDiscount: 8,
		ledger.WellKnownSalesDiscount:    9,
		ledger.WellKnownReceivable:       10,
		ledger.WellKnownPayable:          11,
		ledger.WellKnownShippingExpense:  12,
	})
}

type testEnv struct {
	repo     *memoryRepo
	ledger   *fakeLedger
	inv      *fakeInventory
	fin      *fakeFinance
	contacts *fakeContacts
	activity *recordingActivity
	svc      *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newMemoryRepo(),
		ledger:   &fakeLedger{},
		inv:      &fakeInventory{costs: map[int64]int64{}},
		fin:      &fakeFinance{},
		contacts: &fakeContacts{},
		activity: &recordingActivity{},
	}
	env.svc = NewService(env.repo, env.ledger, env.inv, env.fin, env.contacts, wellKnown(), env.activity, slog.Default())
	env.svc.WithNow(func() time.Time { return orderDate() })
	return env
}

func orderDate() time.Time {
	return time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
}

func intakeInput() CreateInput {
	return CreateInput{
		DateIssued:   orderDate(),
		CustomerName: "Budi",
		Description:  "Screen cracked, no display",
		PhoneNumber:  "0812-0001",
		PhoneType:    "Galaxy A52",
		Address:      "Jl. Melati 3",
		UserID:       7,
		WarehouseID:  1,
	}
}

func postingsByAccount(input ledger.EntryInput) map[int64][2]int64 {
	out := map[int64][2]int64{}
	for _, p := range input.Postings {
		cur := out[p.AccountID]
		out[p.AccountID] = [2]int64{cur[0] + p.Debit, cur[1] + p.Credit}
	}
	return out
}

func TestCreateOrderAllocatesNumber(t *testing.T) {
	env := newTestEnv()

	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)
	require.Equal(t, "ORDER-1-15012025-7-00001", order.OrderNumber)
	require.Equal(t, StatusPending, order.Status)
	require.NotZero(t, order.ContactID)

	second, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)
	require.Equal(t, "ORDER-1-15012025-7-00002", second.OrderNumber)
	// Same phone resolves to the same contact.
	require.Equal(t, order.ContactID, second.ContactID)

	require.Equal(t, []string{"serviceorder.create", "serviceorder.create"}, env.activity.actions())
}

func TestCreateOrderRetriesOnNumberCollision(t *testing.T) {
	env := newTestEnv()

	env.repo.failNumberTaken = 1
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)
	require.Equal(t, "ORDER-1-15012025-7-00001", order.OrderNumber)

	env.repo.failNumberTaken = 2
	_, err = env.svc.Create(context.Background(), intakeInput())
	require.ErrorIs(t, err, ErrNumberConflict)
}

func TestUpdateStatusStampsTechnician(t *testing.T) {
	env := newTestEnv()
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(context.Background(), order.OrderNumber, StatusInProgress, 9)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)
	require.Equal(t, int64(9), updated.TechnicianID)

	// Completed is reachable only through payment.
	_, err = env.svc.UpdateStatus(context.Background(), order.OrderNumber, StatusCompleted, 9)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.svc.UpdateStatus(context.Background(), order.OrderNumber, Status("Broken"), 9)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatusRejectsClosedOrder(t *testing.T) {
	env := newTestEnv()
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(context.Background(), order.OrderNumber, StatusCancelled, 9)
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(context.Background(), order.OrderNumber, StatusInProgress, 9)
	require.ErrorIs(t, err, ErrOrderClosed)
}

func TestAddPartsConsumesStock(t *testing.T) {
	env := newTestEnv()
	env.inv.costs = map[int64]int64{1: 800, 2: 1200}
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)

	updated, parts, err := env.svc.AddParts(context.Background(), AddPartsInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Lines: []PartLine{
			{ProductID: 1, Quantity: 2, UnitPrice: 1500},
			{ProductID: 2, Quantity: 1, UnitPrice: 3000},
		},
		ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFinished, updated.Status)
	require.NotEqual(t, uuid.Nil, updated.PartsOperationID)

	require.Len(t, parts, 2)
	require.Equal(t, int64(800), parts[0].UnitCost)
	require.Equal(t, int64(1200), parts[1].UnitCost)

	require.Len(t, env.inv.movements, 2)
	require.Equal(t, int64(-2), env.inv.movements[0].Quantity)
	require.Equal(t, int64(800), env.inv.movements[0].UnitCost)
	require.Equal(t, int64(1500), env.inv.movements[0].UnitPrice)
	require.Equal(t, inventory.MovementSales, env.inv.movements[0].Type)
	require.Equal(t, updated.PartsOperationID, env.inv.movements[0].OperationID)
}

func TestAddPartsUnwindsWhenMovementFails(t *testing.T) {
	env := newTestEnv()
	env.inv.costs = map[int64]int64{1: 800, 2: 1200}
	env.inv.moveErr = inventory.ErrNegativeStock
	env.inv.failMoveOn = 2
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)

	_, _, err = env.svc.AddParts(context.Background(), AddPartsInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Lines: []PartLine{
			{ProductID: 1, Quantity: 2, UnitPrice: 1500},
			{ProductID: 2, Quantity: 1, UnitPrice: 3000},
		},
		ActorID: 9,
	})
	require.ErrorIs(t, err, inventory.ErrNegativeStock)

	// The first leg's committed movement is voided and the order untouched.
	require.Len(t, env.inv.voidedOps, 1)
	require.Zero(t, env.inv.liveMovements(env.inv.voidedOps[0]))
	stored, getErr := env.repo.GetByNumber(context.Background(), order.OrderNumber)
	require.NoError(t, getErr)
	require.Equal(t, StatusPending, stored.Status)
	require.Empty(t, env.repo.parts[order.ID])
}

func finishedOrder(t *testing.T, env *testEnv) Order {
	t.Helper()
	env.inv.costs = map[int64]int64{1: 800, 2: 1200}
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)
	order, _, err = env.svc.AddParts(context.Background(), AddPartsInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Lines: []PartLine{
			{ProductID: 1, Quantity: 2, UnitPrice: 1500},
			{ProductID: 2, Quantity: 1, UnitPrice: 3000},
		},
		ActorID: 9,
	})
	require.NoError(t, err)
	return order
}

func TestPayCashPostsSettlementEntry(t *testing.T) {
	env := newTestEnv()
	order := finishedOrder(t, env)

	paid, entry, err := env.svc.Pay(context.Background(), PayInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Payment:     PaymentCash,
		ActorID:     7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, paid.Status)
	require.Equal(t, entry.ID, paid.EntryID)
	require.Empty(t, env.fin.bills)

	// Parts total 2*1500 + 3000 = 6000 billed; cost 2*800 + 1200 = 2800.
	require.Len(t, env.ledger.entries, 1)
	byAccount := postingsByAccount(env.ledger.entries[0])
	require.Equal(t, [2]int64{6_000, 0}, byAccount[1]) // cash
	require.Equal(t, [2]int64{0, 6_000}, byAccount[7]) // income
	require.Equal(t, [2]int64{2_800, 0}, byAccount[4]) // cogs
	require.Equal(t, [2]int64{0, 2_800}, byAccount[3]) // inventory

	// Settlement runs under its own operation id so the parts movements
	// stay live.
	require.NotEqual(t, order.PartsOperationID, env.ledger.entries[0].OperationID)
}

func TestPayCreditOpensReceivable(t *testing.T) {
	env := newTestEnv()
	order := finishedOrder(t, env)

	paid, entry, err := env.svc.Pay(context.Background(), PayInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Payment:     PaymentCredit,
		DueDate:     orderDate().AddDate(0, 1, 0),
		ActorID:     7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, paid.Status)

	byAccount := postingsByAccount(env.ledger.entries[0])
	require.Equal(t, [2]int64{6_000, 0}, byAccount[10]) // receivable, not cash
	require.NotContains(t, byAccount, int64(1))

	require.Len(t, env.fin.bills, 1)
	require.Equal(t, finance.TypeReceivable, env.fin.bills[0].Type)
	require.Equal(t, int64(6_000), env.fin.bills[0].BillAmount)
	require.Equal(t, entry.OperationID, env.fin.bills[0].OperationID)
	require.Equal(t, order.ContactID, env.fin.bills[0].ContactID)
}

func TestPayRequiresParts(t *testing.T) {
	env := newTestEnv()
	order, err := env.svc.Create(context.Background(), intakeInput())
	require.NoError(t, err)

	_, _, err = env.svc.Pay(context.Background(), PayInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Payment:     PaymentCash,
		ActorID:     7,
	})
	require.ErrorIs(t, err, ErrNoParts)
	require.Empty(t, env.ledger.entries)
}

func TestPayRejectsSecondSettlement(t *testing.T) {
	env := newTestEnv()
	order := finishedOrder(t, env)

	_, _, err := env.svc.Pay(context.Background(), PayInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Payment:     PaymentCash,
		ActorID:     7,
	})
	require.NoError(t, err)

	_, _, err = env.svc.Pay(context.Background(), PayInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Payment:     PaymentCash,
		ActorID:     7,
	})
	require.ErrorIs(t, err, ErrOrderClosed)
	require.Len(t, env.ledger.entries, 1)
}

func TestPayUnwindsWhenBillFails(t *testing.T) {
	env := newTestEnv()
	order := finishedOrder(t, env)
	env.fin.billErr = finance.ErrInvalidAmount

	_, _, err := env.svc.Pay(context.Background(), PayInput{
		OrderNumber: order.OrderNumber,
		Date:        orderDate(),
		Payment:     PaymentCredit,
		DueDate:     orderDate().AddDate(0, 1, 0),
		ActorID:     7,
	})
	require.ErrorIs(t, err, finance.ErrInvalidAmount)

	// The settlement entry is voided; the parts movements survive.
	require.Equal(t, []int64{1}, env.ledger.voided)
	require.Equal(t, 2, env.inv.liveMovements(order.PartsOperationID))
	stored, getErr := env.repo.GetByNumber(context.Background(), order.OrderNumber)
	require.NoError(t, getErr)
	require.Equal(t, StatusFinished, stored.Status)
}
