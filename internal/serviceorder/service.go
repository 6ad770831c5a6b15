package serviceorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/directory"
	"github.com/arkabooks/arkabooks/internal/finance"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/shared"
)

// LedgerPort is the slice of the ledger the order flow uses.
type LedgerPort interface {
	PostEntry(ctx context.Context, input ledger.EntryInput) (ledger.JournalEntry, error)
	VoidEntry(ctx context.Context, input ledger.VoidInput) (ledger.JournalEntry, error)
}

// InventoryPort is the slice of the costing engine the order flow uses.
type InventoryPort interface {
	RecordMovement(ctx context.Context, input inventory.MovementInput) (inventory.StockMovement, error)
	CurrentCost(ctx context.Context, productID int64) (int64, error)
	VoidOperationMovements(ctx context.Context, operationID uuid.UUID, actorID int64) (int64, error)
}

// FinancePort is the slice of AR/AP the order flow uses.
type FinancePort interface {
	CreateBill(ctx context.Context, input finance.BillInput) (finance.Record, error)
	VoidOperation(ctx context.Context, operationID uuid.UUID, actorID int64) (int64, error)
}

// ContactPort registers walk-in customers by phone number.
type ContactPort interface {
	EnsureContactByPhone(ctx context.Context, contact directory.Contact) (directory.Contact, error)
}

// ActivityPort records order events for the activity trail.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service runs the repair-order lifecycle: intake opens a Pending order, the
// workshop consumes parts from stock, and settlement posts the revenue and
// COGS entry with an optional receivable. Parts and money legs commit through
// their own modules; operation ids are the join keys for voiding.
type Service struct {
	repo      RepositoryPort
	ledger    LedgerPort
	inventory InventoryPort
	finance   FinancePort
	contacts  ContactPort
	wellKnown *ledger.WellKnownAccounts
	activity  ActivityPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the order service.
func NewService(repo RepositoryPort, lp LedgerPort, ip InventoryPort, fp FinancePort, cp ContactPort, wellKnown *ledger.WellKnownAccounts, activity ActivityPort, logger *slog.Logger) *Service {
	return &Service{
		repo: repo, ledger: lp, inventory: ip, finance: fp, contacts: cp,
		wellKnown: wellKnown, activity: activity, logger: logger, now: time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create opens a Pending order and registers the customer as a contact under
// their phone number. An order number is allocated per (warehouse, user,
// day); a lost allocation race is retried once before ErrNumberConflict
// surfaces.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if err := input.Validate(); err != nil {
		return Order{}, err
	}
	var contactID int64
	if s.contacts != nil {
		contact, err := s.contacts.EnsureContactByPhone(ctx, directory.Contact{
			Name:    input.CustomerName,
			Phone:   input.PhoneNumber,
			Address: input.Address,
		})
		if err != nil {
			return Order{}, err
		}
		contactID = contact.ID
	}

	order, err := s.createOnce(ctx, input, contactID)
	if errors.Is(err, ErrNumberTaken) {
		order, err = s.createOnce(ctx, input, contactID)
		if errors.Is(err, ErrNumberTaken) {
			return Order{}, ErrNumberConflict
		}
	}
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, input.UserID, order.WarehouseID, "serviceorder.create", order,
		map[string]any{"order_number": order.OrderNumber})
	return order, nil
}

func (s *Service) createOnce(ctx context.Context, input CreateInput, contactID int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.MaxOrderSeq(ctx, input.WarehouseID, input.UserID, input.DateIssued)
		if err != nil {
			return err
		}
		order, err = tx.InsertOrder(ctx, Order{
			OrderNumber:  FormatOrderNumber(input.WarehouseID, input.DateIssued, input.UserID, seq+1),
			DateIssued:   input.DateIssued,
			CustomerName: input.CustomerName,
			Description:  input.Description,
			PhoneNumber:  input.PhoneNumber,
			PhoneType:    input.PhoneType,
			Address:      input.Address,
			Status:       StatusPending,
			UserID:       input.UserID,
			WarehouseID:  input.WarehouseID,
			ContactID:    contactID,
		})
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Get returns one order with its consumed parts.
func (s *Service) Get(ctx context.Context, orderNumber string) (Order, []Part, error) {
	var order Order
	var parts []Part
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		parts, err = tx.ListParts(ctx, order.ID)
		return err
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, parts, nil
}

// List returns orders matching the search term, newest first.
func (s *Service) List(ctx context.Context, search string, page shared.Page) ([]Order, error) {
	var orders []Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		orders, err = tx.ListOrders(ctx, search, page.Size, page.Offset())
		return err
	})
	return orders, err
}

// UpdateStatus moves an order through the workshop and stamps the acting
// technician. Completed is reserved for the payment path; closed orders
// reject further changes.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, status Status, technicianID int64) (Order, error) {
	if !ValidStatus(status) || status == StatusCompleted {
		return Order{}, ErrInvalidStatus
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetByNumberForUpdate(ctx, orderNumber)
		if err != nil {
			return err
		}
		if order.Status.Closed() {
			return ErrOrderClosed
		}
		order.Status = status
		order.TechnicianID = technicianID
		order, err = tx.UpdateOrder(ctx, order)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, technicianID, order.WarehouseID, "serviceorder.status", order,
		map[string]any{"status": string(status)})
	return order, nil
}

// AddParts consumes stock for a repair. Each part moves out of inventory at
// the product's current weighted-average cost, captured on the part row for
// settlement. The batch shares one operation id; a failed leg voids the
// batch's movements. The order moves to Finished.
func (s *Service) AddParts(ctx context.Context, input AddPartsInput) (Order, []Part, error) {
	if err := input.Validate(); err != nil {
		return Order{}, nil, err
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetByNumberForUpdate(ctx, input.OrderNumber)
		if err != nil {
			return err
		}
		if order.Status.Closed() {
			return ErrOrderClosed
		}
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}

	batchOp := uuid.New()
	parts := make([]Part, 0, len(input.Lines))
	for _, line := range input.Lines {
		cost, err := s.inventory.CurrentCost(ctx, line.ProductID)
		if err != nil {
			s.unwindBatch(ctx, batchOp, input.ActorID, err)
			return Order{}, nil, err
		}
		if _, err := s.inventory.RecordMovement(ctx, inventory.MovementInput{
			ProductID:   line.ProductID,
			WarehouseID: order.WarehouseID,
			OperationID: batchOp,
			Date:        input.Date,
			Quantity:    -line.Quantity,
			UnitCost:    cost,
			UnitPrice:   line.UnitPrice,
			Type:        inventory.MovementSales,
			ActorID:     input.ActorID,
		}); err != nil {
			s.unwindBatch(ctx, batchOp, input.ActorID, err)
			return Order{}, nil, err
		}
		parts = append(parts, Part{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			UnitCost:  cost,
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i := range parts {
			inserted, err := tx.InsertPart(ctx, parts[i])
			if err != nil {
				return err
			}
			parts[i] = inserted
		}
		order.PartsOperationID = batchOp
		order.Status = StatusFinished
		var err error
		order, err = tx.UpdateOrder(ctx, order)
		return err
	})
	if err != nil {
		s.unwindBatch(ctx, batchOp, input.ActorID, err)
		return Order{}, nil, err
	}
	s.record(ctx, input.ActorID, order.WarehouseID, "serviceorder.parts", order,
		map[string]any{"parts": len(parts)})
	return order, parts, nil
}

// Pay settles a finished order: one journal entry bills the customer for the
// parts and books the captured part costs out of inventory, plus a receivable
// when paid on credit. The order closes as Completed.
func (s *Service) Pay(ctx context.Context, input PayInput) (Order, ledger.JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return Order{}, ledger.JournalEntry{}, err
	}
	var order Order
	var parts []Part
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetByNumberForUpdate(ctx, input.OrderNumber)
		if err != nil {
			return err
		}
		if order.Status.Closed() {
			return ErrOrderClosed
		}
		parts, err = tx.ListParts(ctx, order.ID)
		return err
	})
	if err != nil {
		return Order{}, ledger.JournalEntry{}, err
	}
	if len(parts) == 0 {
		return Order{}, ledger.JournalEntry{}, ErrNoParts
	}
	if input.Payment == PaymentCredit && order.ContactID == 0 {
		return Order{}, ledger.JournalEntry{}, ErrContactRequired
	}

	var totalPrice, totalCost int64
	for _, part := range parts {
		totalPrice += part.Quantity * part.UnitPrice
		totalCost += part.Quantity * part.UnitCost
	}

	settleAccount := s.wellKnown.ID(ledger.WellKnownCash)
	if input.Payment == PaymentCredit {
		settleAccount = s.wellKnown.ID(ledger.WellKnownReceivable)
	}
	postings := []ledger.PostingInput{
		{AccountID: settleAccount, Debit: totalPrice},
		{AccountID: s.wellKnown.ID(ledger.WellKnownIncomeFromSales), Credit: totalPrice},
	}
	if totalCost > 0 {
		postings = append(postings,
			ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownCOGS), Debit: totalCost},
			ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownInventory), Credit: totalCost},
		)
	}

	// The settlement has its own operation id: the parts movements stay
	// live, so the money legs must be voidable without touching them.
	settleOp := uuid.New()
	entry, err := s.ledger.PostEntry(ctx, ledger.EntryInput{
		OperationID: settleOp,
		DateIssued:  input.Date,
		Description: fmt.Sprintf("Service order %s settlement", order.OrderNumber),
		Source:      ledger.SourceSales,
		WarehouseID: order.WarehouseID,
		UserID:      input.ActorID,
		Postings:    postings,
	})
	if err != nil {
		return Order{}, ledger.JournalEntry{}, err
	}

	if input.Payment == PaymentCredit {
		if _, err := s.finance.CreateBill(ctx, finance.BillInput{
			Type:        finance.TypeReceivable,
			OperationID: settleOp,
			ContactID:   order.ContactID,
			EntryID:     entry.ID,
			DateIssued:  input.Date,
			DueDate:     input.DueDate,
			BillAmount:  totalPrice,
			ActorID:     input.ActorID,
		}); err != nil {
			s.unwindSettlement(ctx, settleOp, entry.ID, input.ActorID, err)
			return Order{}, ledger.JournalEntry{}, err
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order.Status = StatusCompleted
		order.EntryID = entry.ID
		var err error
		order, err = tx.UpdateOrder(ctx, order)
		return err
	})
	if err != nil {
		s.unwindSettlement(ctx, settleOp, entry.ID, input.ActorID, err)
		return Order{}, ledger.JournalEntry{}, err
	}
	s.record(ctx, input.ActorID, order.WarehouseID, "serviceorder.pay", order,
		map[string]any{"amount": totalPrice, "payment": string(input.Payment)})
	return order, entry, nil
}

// unwindBatch voids the stock movements of one failed parts batch.
func (s *Service) unwindBatch(ctx context.Context, operationID uuid.UUID, actorID int64, cause error) {
	if _, err := s.inventory.VoidOperationMovements(ctx, operationID, actorID); err != nil && s.logger != nil {
		s.logger.Error("order parts unwind failed",
			slog.String("operation_id", operationID.String()),
			slog.Any("cause", cause), slog.Any("error", err))
	}
}

// unwindSettlement voids the settlement's finance rows before its entry; the
// ledger refuses to void an entry with live dependents.
func (s *Service) unwindSettlement(ctx context.Context, operationID uuid.UUID, entryID, actorID int64, cause error) {
	if _, err := s.finance.VoidOperation(ctx, operationID, actorID); err != nil && s.logger != nil {
		s.logger.Error("order settlement unwind: voiding finance records failed",
			slog.String("operation_id", operationID.String()), slog.Any("error", err))
	}
	if _, err := s.ledger.VoidEntry(ctx, ledger.VoidInput{
		EntryID: entryID,
		ActorID: actorID,
		Reason:  fmt.Sprintf("order settlement failed: %v", cause),
	}); err != nil && s.logger != nil {
		s.logger.Error("order settlement unwind failed; entry left active",
			slog.Int64("entry_id", entryID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID, warehouseID int64, action string, order Order, meta map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, shared.ActivityLog{
		ActorID:     actorID,
		WarehouseID: warehouseID,
		Action:      action,
		Entity:      "service_order",
		EntityID:    fmt.Sprintf("%d", order.ID),
		Meta:        meta,
		At:          s.now(),
	})
}
