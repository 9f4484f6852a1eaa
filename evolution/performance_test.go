package evolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

func TestAggregator_Compute_NoTraffic(t *testing.T) {
	a := NewAggregator(store.NewMemoryStore())

	perf, err := a.Compute(context.Background(), "never-ran")
	require.NoError(t, err)
	assert.Equal(t, Performance{}, perf, "a version with no traffic is all zeros, not an error")
}

func TestAggregator_Compute(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	records := []types.ExecutionRecord{
		{AgentVersionID: "v1", Status: types.ExecutionStatusSuccess, LatencyMS: 100, Reward: 1},
		{AgentVersionID: "v1", Status: types.ExecutionStatusSuccess, LatencyMS: 300, Reward: 3},
		{AgentVersionID: "v1", Status: types.ExecutionStatusFailure, LatencyMS: 200, Reward: 0},
		{AgentVersionID: "v1", Status: types.ExecutionStatusFailure, LatencyMS: 400, Reward: 0},
		// Other versions do not leak into the aggregate.
		{AgentVersionID: "v2", Status: types.ExecutionStatusSuccess, LatencyMS: 9000, Reward: 90},
	}
	for i := range records {
		require.NoError(t, st.InsertExecution(ctx, &records[i]))
	}

	perf, err := NewAggregator(st).Compute(ctx, "v1")
	require.NoError(t, err)

	assert.Equal(t, 4, perf.TotalExecutions)
	assert.InDelta(t, 0.5, perf.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, perf.ErrorRate, 1e-9)
	assert.InDelta(t, 1.0, perf.AverageReward, 1e-9)
	assert.InDelta(t, 250.0, perf.AverageLatency, 1e-9)
	assert.Equal(t, int64(2), perf.Failures)
}
