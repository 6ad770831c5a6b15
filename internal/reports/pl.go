package reports

import (
	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/shared"
)

// ProfitAndLoss is the structured P&L payload. Sections carry period
// activity only; opening balances never feed the P&L.
type ProfitAndLoss struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Revenue    Section `json:"revenue"`
	Cost       Section `json:"cost"`
	Expense    Section `json:"expense"`
	Net        int64   `json:"net"`
	NetDisplay string  `json:"net_display"`
}

// BuildProfitAndLoss folds period activity into revenue, cost and expense
// sections. Net result is revenue − cost − expense.
func BuildProfitAndLoss(from, to string, balances []ledger.AccountBalance) ProfitAndLoss {
	revenue := Section{Label: "Revenue"}
	cost := Section{Label: "Cost"}
	expense := Section{Label: "Expense"}

	for _, b := range balances {
		switch b.Category {
		case ledger.CategoryRevenue:
			revenue.add(b.Code, b.Name, b.Signed())
		case ledger.CategoryCost:
			cost.add(b.Code, b.Name, b.Signed())
		case ledger.CategoryExpense:
			expense.add(b.Code, b.Name, b.Signed())
		}
	}
	revenue.finish()
	cost.finish()
	expense.finish()

	net := revenue.Total - cost.Total - expense.Total
	return ProfitAndLoss{
		From:       from,
		To:         to,
		Revenue:    revenue,
		Cost:       cost,
		Expense:    expense,
		Net:        net,
		NetDisplay: shared.FormatAmount(net),
	}
}
