package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arkabooks/arkabooks/internal/ledger"
)

// BalanceReader is the slice of the ledger the projector consumes.
type BalanceReader interface {
	AccountBalances(ctx context.Context, from, to *time.Time) ([]ledger.AccountBalance, error)
	CashActivityBySource(ctx context.Context, from, to time.Time) (map[ledger.SourceType]int64, error)
}

// Service assembles financial statements from ledger balances, with a
// read-through redis cache.
type Service struct {
	ledger BalanceReader
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the report projector.
func NewService(reader BalanceReader, cache *Cache, logger *slog.Logger) *Service {
	return &Service{ledger: reader, cache: cache, logger: logger}
}

const dateLayout = "2006-01-02"

// BalanceSheet builds the balance sheet as of the end of the given day.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	key := fmt.Sprintf("report:bs:%s", asOf.Format(dateLayout))
	var cached BalanceSheet
	if hit := s.cacheGet(ctx, key, &cached); hit {
		return cached, nil
	}
	bound := endOfDay(asOf)
	balances, err := s.ledger.AccountBalances(ctx, nil, &bound)
	if err != nil {
		return BalanceSheet{}, err
	}
	report := BuildBalanceSheet(asOf.Format(dateLayout), balances)
	s.cacheSet(ctx, key, report)
	return report, nil
}

// ProfitAndLoss builds the P&L over [from, to], both days inclusive.
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	key := fmt.Sprintf("report:pl:%s:%s", from.Format(dateLayout), to.Format(dateLayout))
	var cached ProfitAndLoss
	if hit := s.cacheGet(ctx, key, &cached); hit {
		return cached, nil
	}
	lo, hi := startOfDay(from), endOfDay(to)
	balances, err := s.ledger.AccountBalances(ctx, &lo, &hi)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	report := BuildProfitAndLoss(from.Format(dateLayout), to.Format(dateLayout), balances)
	s.cacheSet(ctx, key, report)
	return report, nil
}

// CashFlow builds the cash-flow statement over [from, to]. The start
// position is the cash/bank closing balance at the end of the day before
// from; the end position is the closing balance at the end of to.
func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error) {
	key := fmt.Sprintf("report:cf:%s:%s", from.Format(dateLayout), to.Format(dateLayout))
	var cached CashFlow
	if hit := s.cacheGet(ctx, key, &cached); hit {
		return cached, nil
	}
	start, err := s.cashPosition(ctx, endOfDay(from.AddDate(0, 0, -1)))
	if err != nil {
		return CashFlow{}, err
	}
	end, err := s.cashPosition(ctx, endOfDay(to))
	if err != nil {
		return CashFlow{}, err
	}
	activity, err := s.ledger.CashActivityBySource(ctx, startOfDay(from), endOfDay(to))
	if err != nil {
		return CashFlow{}, err
	}
	report := BuildCashFlow(from.Format(dateLayout), to.Format(dateLayout), start, end, activity)
	s.cacheSet(ctx, key, report)
	return report, nil
}

// Invalidate drops all cached reports.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *Service) cashPosition(ctx context.Context, asOf time.Time) (int64, error) {
	balances, err := s.ledger.AccountBalances(ctx, nil, &asOf)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range balances {
		if b.IsCashBank {
			total += b.Closing()
		}
	}
	return total, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil && s.logger != nil {
		s.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	return hit && err == nil
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil && s.logger != nil {
		s.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
