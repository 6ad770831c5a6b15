package reports

import (
	"sort"

	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/shared"
)

// Row summarises one account within a report section. Amount is minor
// currency units; Display is the grouped-thousands rendering.
type Row struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}

// Section groups rows of one classification with their total. An absent
// classification yields an empty section with total zero, never an error.
type Section struct {
	Label   string `json:"label"`
	Rows    []Row  `json:"rows"`
	Total   int64  `json:"total"`
	Display string `json:"display"`
}

func (s *Section) add(code, name string, amount int64) {
	s.Rows = append(s.Rows, Row{Code: code, Name: name, Amount: amount, Display: shared.FormatAmount(amount)})
	s.Total += amount
}

func (s *Section) finish() {
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].Code < s.Rows[j].Code })
	s.Display = shared.FormatAmount(s.Total)
}

// BalanceSheet is the structured balance sheet payload.
type BalanceSheet struct {
	AsOf                      string  `json:"as_of"`
	Assets                    Section `json:"assets"`
	Liabilities               Section `json:"liabilities"`
	Equity                    Section `json:"equity"`
	TotalLiabilitiesAndEquity int64   `json:"total_liabilities_and_equity"`
}

// BuildBalanceSheet folds closing balances into assets, liabilities and
// equity sections. Closing balance is opening plus signed activity on the
// account's normal side.
func BuildBalanceSheet(asOf string, balances []ledger.AccountBalance) BalanceSheet {
	assets := Section{Label: "Assets"}
	liabilities := Section{Label: "Liabilities"}
	equity := Section{Label: "Equity"}

	for _, b := range balances {
		switch b.Category {
		case ledger.CategoryAsset:
			assets.add(b.Code, b.Name, b.Closing())
		case ledger.CategoryLiability:
			liabilities.add(b.Code, b.Name, b.Closing())
		case ledger.CategoryEquity:
			equity.add(b.Code, b.Name, b.Closing())
		}
	}
	assets.finish()
	liabilities.finish()
	equity.finish()

	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: liabilities.Total + equity.Total,
	}
}
