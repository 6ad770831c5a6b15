package ledger

import (
	"context"
	"fmt"
	"time"
)

// WellKnownKey names an account role resolved from account_mappings at
// startup. Ledger code never references accounts by raw numeric id.
type WellKnownKey string

const (
	WellKnownCash             WellKnownKey = "CASH"
	WellKnownBank             WellKnownKey = "BANK"
	WellKnownInventory        WellKnownKey = "INVENTORY"
	WellKnownCOGS             WellKnownKey = "COGS"
	WellKnownEquityPlug       WellKnownKey = "EQUITY_PLUG"
	WellKnownCurrentEarnings  WellKnownKey = "CURRENT_EARNINGS"
	WellKnownIncomeFromSales  WellKnownKey = "INCOME_FROM_SALES"
	WellKnownPurchaseDiscount WellKnownKey = "PURCHASE_DISCOUNT"
	WellKnownSalesDiscount    WellKnownKey = "SALES_DISCOUNT"
	WellKnownReceivable       WellKnownKey = "RECEIVABLE"
	WellKnownPayable          WellKnownKey = "PAYABLE"
	WellKnownShippingExpense  WellKnownKey = "SHIPPING_EXPENSE"
)

// mappingModule scopes ledger rows in account_mappings.
const mappingModule = "LEDGER"

var requiredKeys = []WellKnownKey{
	WellKnownCash,
	WellKnownBank,
	WellKnownInventory,
	WellKnownCOGS,
	WellKnownEquityPlug,
	WellKnownCurrentEarnings,
	WellKnownIncomeFromSales,
	WellKnownPurchaseDiscount,
	WellKnownSalesDiscount,
	WellKnownReceivable,
	WellKnownPayable,
	WellKnownShippingExpense,
}

// AccountMapping links a symbolic key to a ledger account.
type AccountMapping struct {
	Module    string
	Key       WellKnownKey
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MappingRepository loads account mappings.
type MappingRepository interface {
	ListAccountMappings(ctx context.Context, module string) ([]AccountMapping, error)
}

// WellKnownAccounts resolves symbolic keys to account ids.
type WellKnownAccounts struct {
	ids map[WellKnownKey]int64
}

// ResolveWellKnown loads and validates the full mapping table. Every required
// key must be present; a partial table is a deployment error.
func ResolveWellKnown(ctx context.Context, repo MappingRepository) (*WellKnownAccounts, error) {
	mappings, err := repo.ListAccountMappings(ctx, mappingModule)
	if err != nil {
		return nil, err
	}
	ids := make(map[WellKnownKey]int64, len(mappings))
	for _, m := range mappings {
		ids[m.Key] = m.AccountID
	}
	for _, key := range requiredKeys {
		if ids[key] == 0 {
			return nil, fmt.Errorf("ledger: account mapping %s missing", key)
		}
	}
	return &WellKnownAccounts{ids: ids}, nil
}

// NewWellKnownAccounts builds the table from a literal map, used in tests.
func NewWellKnownAccounts(ids map[WellKnownKey]int64) *WellKnownAccounts {
	copied := make(map[WellKnownKey]int64, len(ids))
	for k, v := range ids {
		copied[k] = v
	}
	return &WellKnownAccounts{ids: copied}
}

// ID returns the account id for a key, zero when unmapped.
func (w *WellKnownAccounts) ID(key WellKnownKey) int64 {
	if w == nil {
		return 0
	}
	return w.ids[key]
}

// IsPlug reports whether the account is the managed equity plug.
func (w *WellKnownAccounts) IsPlug(accountID int64) bool {
	return w != nil && accountID != 0 && w.ids[WellKnownEquityPlug] == accountID
}
