package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTrialBalanceCheck verifies the ledger still balances.
	TaskTrialBalanceCheck = "ledger:trial_balance"
	// TaskEquityPlugRecompute refreshes the retained-earnings plug account.
	TaskEquityPlugRecompute = "ledger:equity_plug"
	// TaskInventoryRevaluation recomputes weighted-average costs.
	TaskInventoryRevaluation = "inventory:revaluation"
)

// TrialBalancePayload carries scheduling metadata for the balance check.
type TrialBalancePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTrialBalanceTask constructs a trial-balance check task.
func NewTrialBalanceTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(TrialBalancePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTrialBalanceCheck, body, asynq.Queue(QueueDefault)), nil
}

// EquityPlugPayload names the valuation date for the plug recompute.
type EquityPlugPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewEquityPlugTask constructs an equity-plug recompute task.
func NewEquityPlugTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(EquityPlugPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEquityPlugRecompute, body, asynq.Queue(QueueDefault)), nil
}

// InventoryRevaluationPayload carries scheduling metadata.
type InventoryRevaluationPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewInventoryRevaluationTask constructs an inventory revaluation task.
func NewInventoryRevaluationTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(InventoryRevaluationPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryRevaluation, body, asynq.Queue(QueueDefault)), nil
}
