package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/arkabooks/arkabooks/internal/directory"
	"github.com/arkabooks/arkabooks/internal/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBalances struct {
	balances   []ledger.AccountBalance
	unbalanced []string
}

func (f *fakeBalances) AccountBalances(_ context.Context, _, _ *time.Time) ([]ledger.AccountBalance, error) {
	return f.balances, nil
}

func (f *fakeBalances) UnbalancedReferences(_ context.Context) ([]string, error) {
	return f.unbalanced, nil
}

func TestTrialBalanceHandler(t *testing.T) {
	reader := &fakeBalances{balances: []ledger.AccountBalance{
		{Debit: 100_000, Credit: 40_000},
		{Debit: 40_000, Credit: 100_000},
	}}
	handler := NewTrialBalanceHandler(reader, discardLogger())

	task, err := NewTrialBalanceTask(time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	reader.balances = append(reader.balances, ledger.AccountBalance{Debit: 500})
	err = handler(context.Background(), task)
	require.Error(t, err)
	require.Contains(t, err.Error(), "off by 500")

	reader.unbalanced = []string{"JRN.BK.15012025.1.0000003"}
	err = handler(context.Background(), task)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unbalanced entries")
}

func TestTrialBalanceHandlerSkipsBadPayload(t *testing.T) {
	handler := NewTrialBalanceHandler(&fakeBalances{}, discardLogger())
	err := handler(context.Background(), asynq.NewTask(TaskTrialBalanceCheck, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakePlug struct {
	plug  int64
	asOf  time.Time
	calls int
}

func (f *fakePlug) EquityPlugRecompute(_ context.Context, asOf time.Time) (int64, error) {
	f.calls++
	f.asOf = asOf
	return f.plug, nil
}

type fakeCache struct {
	invalidations int
}

func (f *fakeCache) Invalidate(_ context.Context) error {
	f.invalidations++
	return nil
}

func TestEquityPlugHandler(t *testing.T) {
	plug := &fakePlug{plug: 30_000}
	cache := &fakeCache{}
	handler := NewEquityPlugHandler(plug, cache, discardLogger())

	asOf := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	task, err := NewEquityPlugTask(asOf)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 1, plug.calls)
	require.True(t, plug.asOf.Equal(asOf))
	require.Equal(t, 1, cache.invalidations)
}

type fakeCatalog struct {
	products []directory.Product
}

func (f *fakeCatalog) ListProducts(_ context.Context) ([]directory.Product, error) {
	return f.products, nil
}

type fakeCosts struct {
	mu         sync.Mutex
	recomputed []int64
	failFor    int64
}

func (f *fakeCosts) RecomputeWeightedAverageCost(_ context.Context, productID int64) (int64, error) {
	if productID == f.failFor {
		return 0, errors.New("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputed = append(f.recomputed, productID)
	return 1000, nil
}

func TestInventoryRevaluationHandler(t *testing.T) {
	catalog := &fakeCatalog{products: []directory.Product{
		{ID: 1, Code: "EL0001"},
		{ID: 2, Code: "SV0001", IsService: true},
		{ID: 3, Code: "EL0002"},
		{ID: 4, Code: "EL0003"},
	}}
	costs := &fakeCosts{failFor: 3}
	handler := NewInventoryRevaluationHandler(catalog, costs, discardLogger())

	task, err := NewInventoryRevaluationTask(time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// One product fails, the sweep still finishes without error.
	require.NoError(t, handler(context.Background(), task))
	require.ElementsMatch(t, []int64{1, 4}, costs.recomputed)
}
