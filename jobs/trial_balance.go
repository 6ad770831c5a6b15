package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arkabooks/arkabooks/internal/ledger"
)

// TrialBalanceReader exposes the balance sums the integrity check needs.
type TrialBalanceReader interface {
	AccountBalances(ctx context.Context, from, to *time.Time) ([]ledger.AccountBalance, error)
	UnbalancedReferences(ctx context.Context) ([]string, error)
}

// NewTrialBalanceHandler returns a handler that sums every account's debit
// and credit activity, lists any individual entry out of balance, and fails
// the task when the books do not balance.
func NewTrialBalanceHandler(reader TrialBalanceReader, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TrialBalancePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		unbalanced, err := reader.UnbalancedReferences(ctx)
		if err != nil {
			return err
		}
		if len(unbalanced) > 0 {
			logger.Error("unbalanced entries found",
				slog.Int("count", len(unbalanced)),
				slog.Any("references", unbalanced))
			return fmt.Errorf("jobs: %d unbalanced entries", len(unbalanced))
		}
		balances, err := reader.AccountBalances(ctx, nil, nil)
		if err != nil {
			return err
		}
		var debit, credit int64
		for _, b := range balances {
			debit += b.Debit
			credit += b.Credit
		}
		if debit != credit {
			logger.Error("trial balance mismatch",
				slog.Int64("debit", debit),
				slog.Int64("credit", credit))
			return fmt.Errorf("jobs: trial balance off by %d", debit-credit)
		}
		logger.Info("trial balance verified",
			slog.Int64("total", debit),
			slog.Time("scheduled_for", payload.ScheduledFor))
		return nil
	}
}
