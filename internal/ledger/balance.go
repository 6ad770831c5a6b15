package ledger

import (
	"context"
	"time"
)

// BalanceAsOf returns opening balance plus signed posting activity up to and
// including asOf. Only ACTIVE entries count. The sign convention follows the
// account's normal side: debit-normal accounts grow with debits,
// credit-normal accounts grow with credits.
func (s *Service) BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (int64, error) {
	var balance int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		debit, credit, err := tx.SumPostings(ctx, accountID, nil, &asOf)
		if err != nil {
			return err
		}
		balance = account.OpeningBalance + signed(account.NormalSide, debit, credit)
		return nil
	})
	return balance, err
}

// BalanceBetween returns signed activity over [from, to], both endpoints
// inclusive. Period activity excludes the opening balance, which makes it
// the right primitive for P&L and cash-flow windows.
func (s *Service) BalanceBetween(ctx context.Context, accountID int64, from, to time.Time) (int64, error) {
	var balance int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		debit, credit, err := tx.SumPostings(ctx, accountID, &from, &to)
		if err != nil {
			return err
		}
		balance = signed(account.NormalSide, debit, credit)
		return nil
	})
	return balance, err
}

// AccountBalances lists every account with activity sums over the window.
// Nil bounds mean unbounded.
func (s *Service) AccountBalances(ctx context.Context, from, to *time.Time) ([]AccountBalance, error) {
	var balances []AccountBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		balances, err = tx.ListAccountBalances(ctx, from, to)
		return err
	})
	return balances, err
}

// CashActivityBySource sums signed cash/bank account activity per journal
// source type over [from, to]. Used by the cash-flow projector.
func (s *Service) CashActivityBySource(ctx context.Context, from, to time.Time) (map[SourceType]int64, error) {
	var activity map[SourceType]int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		activity, err = tx.SumCashActivityBySource(ctx, from, to)
		return err
	})
	return activity, err
}

// UnbalancedReferences lists active entries whose debits and credits
// disagree. Normally empty; the nightly integrity job alerts otherwise.
func (s *Service) UnbalancedReferences(ctx context.Context) ([]string, error) {
	var references []string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		references, err = tx.ListUnbalancedReferences(ctx)
		return err
	})
	return references, err
}

// EquityPlugRecompute derives assets − liabilities − other equity as of a
// date and writes it into the plug account's opening balance. The plug is
// engine-owned output; no other code path may write that balance.
func (s *Service) EquityPlugRecompute(ctx context.Context, asOf time.Time) (int64, error) {
	plugID := s.wellKnown.ID(WellKnownEquityPlug)
	if plugID == 0 {
		return 0, ErrAccountNotFound
	}
	var plug int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balances, err := tx.ListAccountBalances(ctx, nil, &asOf)
		if err != nil {
			return err
		}
		var assets, liabilities, otherEquity int64
		for _, b := range balances {
			switch b.Category {
			case CategoryAsset:
				assets += b.Closing()
			case CategoryLiability:
				liabilities += b.Closing()
			case CategoryEquity:
				if b.ID != plugID {
					otherEquity += b.Closing()
				}
			}
		}
		plug = assets - liabilities - otherEquity
		return tx.SetOpeningBalance(ctx, plugID, plug)
	})
	return plug, err
}

func signed(side NormalSide, debit, credit int64) int64 {
	if side == NormalDebit {
		return debit - credit
	}
	return credit - debit
}
