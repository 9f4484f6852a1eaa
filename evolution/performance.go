package evolution

import (
	"context"

	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// Performance is the rolled-up view of an agent version's execution
// history.
type Performance struct {
	SuccessRate     float64 `json:"success_rate"`
	ErrorRate       float64 `json:"error_rate"`
	AverageReward   float64 `json:"average_reward"`
	AverageLatency  float64 `json:"average_latency_ms"`
	TotalExecutions int     `json:"total_executions"`
	// Failures is the raw failure-record count, consumed by the gate.
	Failures int64 `json:"failures"`
}

// Aggregator computes Performance from the append-only execution log.
// Pure function of the log; no side effects.
type Aggregator struct {
	store store.Store
}

// NewAggregator creates a performance aggregator.
func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Compute aggregates all execution records for the agent version. A
// version with no traffic yields all-zero metrics, not an error: it is
// neither good nor bad yet.
func (a *Aggregator) Compute(ctx context.Context, agentVersionID string) (Performance, error) {
	records, err := a.store.FindExecutions(ctx, agentVersionID)
	if err != nil {
		return Performance{}, err
	}

	total := len(records)
	if total == 0 {
		return Performance{}, nil
	}

	var successes, failures int64
	var rewardSum, latencySum int64
	for _, rec := range records {
		if rec.Status == types.ExecutionStatusSuccess {
			successes++
		} else {
			failures++
		}
		rewardSum += rec.Reward
		latencySum += rec.LatencyMS
	}

	n := float64(total)
	return Performance{
		SuccessRate:     float64(successes) / n,
		ErrorRate:       float64(failures) / n,
		AverageReward:   float64(rewardSum) / n,
		AverageLatency:  float64(latencySum) / n,
		TotalExecutions: total,
		Failures:        failures,
	}, nil
}
