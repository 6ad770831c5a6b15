package pos

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/finance"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
)

// LedgerPort is the slice of the ledger the cart orchestrator uses.
type LedgerPort interface {
	PostEntry(ctx context.Context, input ledger.EntryInput) (ledger.JournalEntry, error)
	VoidEntry(ctx context.Context, input ledger.VoidInput) (ledger.JournalEntry, error)
}

// InventoryPort is the slice of the costing engine the orchestrator uses.
type InventoryPort interface {
	RecordMovement(ctx context.Context, input inventory.MovementInput) (inventory.StockMovement, error)
	RecomputeWeightedAverageCost(ctx context.Context, productID int64) (int64, error)
	CurrentCost(ctx context.Context, productID int64) (int64, error)
	VoidOperationMovements(ctx context.Context, operationID uuid.UUID, actorID int64) (int64, error)
}

// FinancePort is the slice of AR/AP the orchestrator uses.
type FinancePort interface {
	CreateBill(ctx context.Context, input finance.BillInput) (finance.Record, error)
	VoidOperation(ctx context.Context, operationID uuid.UUID, actorID int64) (int64, error)
}

// Service turns purchase and sales carts into journal entries, stock
// movements and AR/AP rows sharing one business operation id. Each leg
// commits through its own module; the operation id is the join key for
// voiding and reconciliation.
type Service struct {
	ledger    LedgerPort
	inventory InventoryPort
	finance   FinancePort
	wellKnown *ledger.WellKnownAccounts
	logger    *slog.Logger
}

// NewService constructs the cart orchestrator.
func NewService(lp LedgerPort, ip InventoryPort, fp FinancePort, wellKnown *ledger.WellKnownAccounts, logger *slog.Logger) *Service {
	return &Service{ledger: lp, inventory: ip, finance: fp, wellKnown: wellKnown, logger: logger}
}

// Purchase records a purchase cart: inventory in at net cost, one balanced
// journal entry, and a payable bill when bought on credit.
func (s *Service) Purchase(ctx context.Context, input PurchaseInput) (OperationResult, error) {
	if err := validateCart(input.Lines, input.Discount, input.ShippingCost, input.Payment, input.ContactID, input.Date); err != nil {
		return OperationResult{}, err
	}
	operationID := uuid.New()
	allocated := inventory.AllocateDiscount(input.Lines, input.Discount)

	var gross int64
	for _, line := range input.Lines {
		gross += line.Subtotal()
	}
	net := gross - input.Discount + input.ShippingCost

	settleAccount := s.wellKnown.ID(ledger.WellKnownCash)
	if input.Payment == PaymentCredit {
		settleAccount = s.wellKnown.ID(ledger.WellKnownPayable)
	}

	postings := []ledger.PostingInput{
		{AccountID: s.wellKnown.ID(ledger.WellKnownInventory), Debit: gross},
	}
	if input.ShippingCost > 0 {
		postings = append(postings, ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownShippingExpense), Debit: input.ShippingCost})
	}
	if input.Discount > 0 {
		postings = append(postings, ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownPurchaseDiscount), Credit: input.Discount})
	}
	postings = append(postings, ledger.PostingInput{AccountID: settleAccount, Credit: net})

	entry, err := s.ledger.PostEntry(ctx, ledger.EntryInput{
		OperationID: operationID,
		DateIssued:  input.Date,
		Description: fmt.Sprintf("Purchase of %d line(s)", len(input.Lines)),
		Source:      ledger.SourcePurchase,
		WarehouseID: input.WarehouseID,
		UserID:      input.UserID,
		Postings:    postings,
	})
	if err != nil {
		return OperationResult{}, err
	}

	result := OperationResult{Entry: entry, Lines: allocated, NetTotal: net}
	for _, line := range allocated {
		movement, err := s.inventory.RecordMovement(ctx, inventory.MovementInput{
			ProductID:   line.ProductID,
			WarehouseID: input.WarehouseID,
			OperationID: operationID,
			Date:        input.Date,
			Quantity:    line.Quantity,
			UnitCost:    line.NetUnit,
			Type:        inventory.MovementPurchase,
			ActorID:     input.UserID,
		})
		if err != nil {
			s.unwind(ctx, operationID, entry.ID, input.UserID, err)
			return OperationResult{}, err
		}
		result.Movements = append(result.Movements, movement)
		if _, err := s.inventory.RecomputeWeightedAverageCost(ctx, line.ProductID); err != nil {
			s.unwind(ctx, operationID, entry.ID, input.UserID, err)
			return OperationResult{}, err
		}
	}

	if input.Payment == PaymentCredit {
		bill, err := s.finance.CreateBill(ctx, finance.BillInput{
			Type:        finance.TypePayable,
			OperationID: operationID,
			ContactID:   input.ContactID,
			EntryID:     entry.ID,
			DateIssued:  input.Date,
			DueDate:     input.DueDate,
			BillAmount:  net,
			ActorID:     input.UserID,
		})
		if err != nil {
			s.unwind(ctx, operationID, entry.ID, input.UserID, err)
			return OperationResult{}, err
		}
		result.Bill = &bill
	}
	return result, nil
}

// Sale records a sales cart: revenue and COGS legs in one entry, inventory
// out at the product's current weighted-average cost, and a receivable bill
// when sold on credit. Product cost is never recomputed by a sale.
func (s *Service) Sale(ctx context.Context, input SaleInput) (OperationResult, error) {
	if err := validateCart(input.Lines, input.Discount, input.ShippingCost, input.Payment, input.ContactID, input.Date); err != nil {
		return OperationResult{}, err
	}
	operationID := uuid.New()
	allocated := inventory.AllocateDiscount(input.Lines, input.Discount)

	var gross int64
	for _, line := range input.Lines {
		gross += line.Subtotal()
	}
	net := gross - input.Discount

	costs := make(map[int64]int64, len(allocated))
	var cogs int64
	for _, line := range allocated {
		cost, err := s.inventory.CurrentCost(ctx, line.ProductID)
		if err != nil {
			return OperationResult{}, err
		}
		costs[line.ProductID] = cost
		cogs += cost * line.Quantity
	}

	settleAccount := s.wellKnown.ID(ledger.WellKnownCash)
	if input.Payment == PaymentCredit {
		settleAccount = s.wellKnown.ID(ledger.WellKnownReceivable)
	}

	postings := []ledger.PostingInput{
		{AccountID: settleAccount, Debit: net},
	}
	if input.Discount > 0 {
		postings = append(postings, ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownSalesDiscount), Debit: input.Discount})
	}
	postings = append(postings, ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownIncomeFromSales), Credit: gross})
	if cogs > 0 {
		postings = append(postings,
			ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownCOGS), Debit: cogs},
			ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownInventory), Credit: cogs},
		)
	}
	if input.ShippingCost > 0 {
		postings = append(postings,
			ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownShippingExpense), Debit: input.ShippingCost},
			ledger.PostingInput{AccountID: s.wellKnown.ID(ledger.WellKnownCash), Credit: input.ShippingCost},
		)
	}

	entry, err := s.ledger.PostEntry(ctx, ledger.EntryInput{
		OperationID: operationID,
		DateIssued:  input.Date,
		Description: fmt.Sprintf("Sale of %d line(s)", len(input.Lines)),
		Source:      ledger.SourceSales,
		WarehouseID: input.WarehouseID,
		UserID:      input.UserID,
		Postings:    postings,
	})
	if err != nil {
		return OperationResult{}, err
	}

	result := OperationResult{Entry: entry, Lines: allocated, NetTotal: net + input.ShippingCost}
	for _, line := range allocated {
		movement, err := s.inventory.RecordMovement(ctx, inventory.MovementInput{
			ProductID:   line.ProductID,
			WarehouseID: input.WarehouseID,
			OperationID: operationID,
			Date:        input.Date,
			Quantity:    -line.Quantity,
			UnitCost:    costs[line.ProductID],
			UnitPrice:   line.NetUnit,
			Type:        inventory.MovementSales,
			ActorID:     input.UserID,
		})
		if err != nil {
			s.unwind(ctx, operationID, entry.ID, input.UserID, err)
			return OperationResult{}, err
		}
		result.Movements = append(result.Movements, movement)
	}

	if input.Payment == PaymentCredit {
		bill, err := s.finance.CreateBill(ctx, finance.BillInput{
			Type:        finance.TypeReceivable,
			OperationID: operationID,
			ContactID:   input.ContactID,
			EntryID:     entry.ID,
			DateIssued:  input.Date,
			DueDate:     input.DueDate,
			BillAmount:  net,
			ActorID:     input.UserID,
		})
		if err != nil {
			s.unwind(ctx, operationID, entry.ID, input.UserID, err)
			return OperationResult{}, err
		}
		result.Bill = &bill
	}
	return result, nil
}

// unwind compensates a cart whose later leg failed. Earlier legs may have
// committed movements or AR/AP rows under the operation id, and the ledger
// refuses to void an entry with live dependents, so those are voided first
// and the journal entry last.
func (s *Service) unwind(ctx context.Context, operationID uuid.UUID, entryID, actorID int64, cause error) {
	if _, err := s.inventory.VoidOperationMovements(ctx, operationID, actorID); err != nil && s.logger != nil {
		s.logger.Error("cart unwind: voiding movements failed",
			slog.String("operation_id", operationID.String()), slog.Any("error", err))
	}
	if _, err := s.finance.VoidOperation(ctx, operationID, actorID); err != nil && s.logger != nil {
		s.logger.Error("cart unwind: voiding finance records failed",
			slog.String("operation_id", operationID.String()), slog.Any("error", err))
	}
	if _, err := s.ledger.VoidEntry(ctx, ledger.VoidInput{
		EntryID: entryID,
		ActorID: actorID,
		Reason:  fmt.Sprintf("cart leg failed: %v", cause),
	}); err != nil && s.logger != nil {
		s.logger.Error("cart unwind failed; entry left active",
			slog.Int64("entry_id", entryID), slog.Any("error", err))
	}
}
