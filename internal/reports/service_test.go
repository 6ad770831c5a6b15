package reports

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/arkabooks/arkabooks/internal/ledger"
)

// fakeReader serves canned balances and counts reads to observe caching.
type fakeReader struct {
	balances []ledger.AccountBalance
	activity map[ledger.SourceType]int64
	reads    int
}

func (f *fakeReader) AccountBalances(_ context.Context, _, _ *time.Time) ([]ledger.AccountBalance, error) {
	f.reads++
	return f.balances, nil
}

func (f *fakeReader) CashActivityBySource(_ context.Context, _, _ time.Time) (map[ledger.SourceType]int64, error) {
	f.reads++
	return f.activity, nil
}

func account(code, name string, cat ledger.AccountCategory, side ledger.NormalSide, opening int64, cashBank bool) ledger.Account {
	return ledger.Account{Code: code, Name: name, Category: cat, NormalSide: side, OpeningBalance: opening, IsCashBank: cashBank}
}

func testReader() *fakeReader {
	return &fakeReader{
		balances: []ledger.AccountBalance{
			{Account: account("10100-001", "Cash", ledger.CategoryAsset, ledger.NormalDebit, 100_000, true), Debit: 50_000, Credit: 10_000},
			{Account: account("10200-001", "Inventory", ledger.CategoryAsset, ledger.NormalDebit, 0, false), Debit: 20_000, Credit: 5_000},
			{Account: account("20100-001", "Trade Payable", ledger.CategoryLiability, ledger.NormalCredit, 30_000, false), Debit: 0, Credit: 15_000},
			{Account: account("30100-001", "Owner Capital", ledger.CategoryEquity, ledger.NormalCredit, 80_000, false)},
			{Account: account("40100-001", "Sales Income", ledger.CategoryRevenue, ledger.NormalCredit, 0, false), Credit: 60_000},
			{Account: account("50100-001", "Cost of Goods Sold", ledger.CategoryCost, ledger.NormalDebit, 0, false), Debit: 25_000},
			{Account: account("60100-001", "Rent", ledger.CategoryExpense, ledger.NormalDebit, 0, false), Debit: 8_000},
		},
		activity: map[ledger.SourceType]int64{
			ledger.SourceTransfer: 5_000,
			ledger.SourceExpense:  -8_000,
			ledger.SourceSales:    60_000,
		},
	}
}

func newTestService(t *testing.T, reader BalanceReader) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(reader, NewCache(client, time.Minute), slog.Default())
}

func reportDate() time.Time {
	return time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
}

func TestBalanceSheetSectionsAndTotals(t *testing.T) {
	svc := newTestService(t, testReader())

	report, err := svc.BalanceSheet(context.Background(), reportDate())
	require.NoError(t, err)

	// Cash 100000+40000, Inventory 15000.
	require.Equal(t, int64(155_000), report.Assets.Total)
	require.Equal(t, int64(45_000), report.Liabilities.Total)
	require.Equal(t, int64(80_000), report.Equity.Total)
	require.Equal(t, int64(125_000), report.TotalLiabilitiesAndEquity)

	require.Equal(t, "10100-001", report.Assets.Rows[0].Code)
	require.Equal(t, "10200-001", report.Assets.Rows[1].Code)
	require.NotEmpty(t, report.Assets.Rows[0].Display)
}

func TestBalanceSheetMissingGroupIsZero(t *testing.T) {
	svc := newTestService(t, &fakeReader{})

	report, err := svc.BalanceSheet(context.Background(), reportDate())
	require.NoError(t, err)
	require.Zero(t, report.Assets.Total)
	require.Zero(t, report.Liabilities.Total)
	require.Zero(t, report.Equity.Total)
	require.Empty(t, report.Assets.Rows)
}

func TestProfitAndLossNet(t *testing.T) {
	svc := newTestService(t, testReader())

	report, err := svc.ProfitAndLoss(context.Background(), reportDate().AddDate(0, -1, 0), reportDate())
	require.NoError(t, err)

	require.Equal(t, int64(60_000), report.Revenue.Total)
	require.Equal(t, int64(25_000), report.Cost.Total)
	require.Equal(t, int64(8_000), report.Expense.Total)
	require.Equal(t, int64(27_000), report.Net)
}

func TestCashFlowPositionsAndBuckets(t *testing.T) {
	svc := newTestService(t, testReader())

	report, err := svc.CashFlow(context.Background(), reportDate().AddDate(0, -1, 0), reportDate())
	require.NoError(t, err)

	// Only the cash/bank account feeds positions: 100000+40000 on both ends
	// with the canned reader.
	require.Equal(t, int64(140_000), report.StartBalance)
	require.Equal(t, int64(140_000), report.EndBalance)
	require.Zero(t, report.NetChange)

	byName := map[string]int64{}
	for _, bucket := range report.Buckets {
		byName[bucket.Source] = bucket.Amount
	}
	require.Equal(t, int64(5_000), byName["Transfer"])
	require.Equal(t, int64(-8_000), byName["Expense"])
	require.Len(t, report.Buckets, 5)
	// Sales is not a named bucket; it lands in Other.
	require.Equal(t, int64(60_000), report.Other)
}

func TestBalanceSheetCached(t *testing.T) {
	reader := testReader()
	svc := newTestService(t, reader)

	first, err := svc.BalanceSheet(context.Background(), reportDate())
	require.NoError(t, err)
	readsAfterFirst := reader.reads

	second, err := svc.BalanceSheet(context.Background(), reportDate())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, readsAfterFirst, reader.reads)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.BalanceSheet(context.Background(), reportDate())
	require.NoError(t, err)
	require.Greater(t, reader.reads, readsAfterFirst)
}
