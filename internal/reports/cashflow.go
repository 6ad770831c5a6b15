package reports

import (
	"sort"

	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/shared"
)

// cashFlowSources are the journal source types broken out as cash-flow
// activity buckets.
var cashFlowSources = []ledger.SourceType{
	ledger.SourceTransfer,
	ledger.SourceWithdrawal,
	ledger.SourceDeposit,
	ledger.SourceVoucher,
	ledger.SourceExpense,
}

// CashFlowBucket is signed cash movement attributed to one source type.
type CashFlowBucket struct {
	Source  string `json:"source"`
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}

// CashFlow is the structured cash-flow payload over cash/bank accounts.
type CashFlow struct {
	From         string           `json:"from"`
	To           string           `json:"to"`
	StartBalance int64            `json:"start_balance"`
	EndBalance   int64            `json:"end_balance"`
	NetChange    int64            `json:"net_change"`
	Buckets      []CashFlowBucket `json:"buckets"`
	Other        int64            `json:"other"`
}

// BuildCashFlow assembles the cash-flow statement from the start/end cash
// positions and per-source activity. Sources outside the named buckets are
// folded into Other so the buckets plus Other always reconcile with the net
// change.
func BuildCashFlow(from, to string, start, end int64, activity map[ledger.SourceType]int64) CashFlow {
	cf := CashFlow{
		From:         from,
		To:           to,
		StartBalance: start,
		EndBalance:   end,
		NetChange:    end - start,
	}
	named := map[ledger.SourceType]bool{}
	for _, source := range cashFlowSources {
		named[source] = true
		cf.Buckets = append(cf.Buckets, CashFlowBucket{
			Source:  string(source),
			Amount:  activity[source],
			Display: shared.FormatAmount(activity[source]),
		})
	}
	for source, amount := range activity {
		if !named[source] {
			cf.Other += amount
		}
	}
	sort.Slice(cf.Buckets, func(i, j int) bool { return cf.Buckets[i].Source < cf.Buckets[j].Source })
	return cf
}
