package evoflow

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/evoflow/evoflow/config"
	"github.com/evoflow/evoflow/evolution"
	"github.com/evoflow/evoflow/pipeline"
	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

func newTestPipeline(t *testing.T, st *store.MemoryStore, invoke pipeline.InvokeFunc) *Pipeline {
	t.Helper()
	p, err := New(config.Default(), invoke,
		WithLogger(zaptest.NewLogger(t)),
		WithStore(st),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// TestPipeline_EndToEnd drives the whole loop through the facade: run a
// chain, collect feedback, sweep, and observe the evolved version serving
// the next chain run.
func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	plugin := st.SeedPlugin(&types.Plugin{
		Name:     "answerer",
		TenantID: "t1",
		Status:   types.PluginStatusActive,
		XP:       150,
	})
	v1 := &types.AgentVersion{
		PluginID:  plugin.ID,
		Version:   1,
		Prompt:    "Answer the question.",
		Status:    types.VersionStatusActive,
		XP:        150,
		CreatedAt: time.Now().Add(-30 * 24 * time.Hour),
	}
	require.NoError(t, st.InsertAgentVersion(ctx, v1))

	invoke := func(_ context.Context, _ *types.Plugin, version *types.AgentVersion, input map[string]any) (any, error) {
		return map[string]any{"answer": "42", "prompt_version": version.Version}, nil
	}
	p := newTestPipeline(t, st, invoke)

	// 1. Run a chain.
	res, err := p.RunChain(ctx, pipeline.ChainRequest{
		PluginIDs:    []string{plugin.ID},
		InitialInput: map[string]any{"question": "meaning of life"},
		TenantID:     "t1",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.Output["answer"])

	// The run left an execution record behind.
	recs, err := st.FindExecutions(ctx, v1.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// 2. Users vote the version down, with comments.
	for i := 0; i < 10; i++ {
		require.NoError(t, p.RecordVote(ctx, evolution.Vote{
			AgentVersionID: v1.ID,
			VoterID:        "user",
			Type:           types.VoteTypeDown,
			Comment:        "answers are too terse",
		}))
	}

	// 3. The sweep evolves the version off the negative feedback.
	summary, err := p.RunEvolutionSweep(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Evolved)
	assert.Zero(t, summary.Errors)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, evolution.ReasonNegativeFeedback, summary.Details[0].Reason)

	// 4. The next chain run is served by the evolved version.
	res, err = p.RunChain(ctx, pipeline.ChainRequest{
		PluginIDs:    []string{plugin.ID},
		InitialInput: map[string]any{"question": "again"},
		TenantID:     "t1",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Output["prompt_version"])

	active, err := st.ActiveAgentVersion(ctx, plugin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
	assert.Contains(t, active.Prompt, "answers are too terse")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	p, err := New(nil, nil,
		WithLogger(zaptest.NewLogger(t)),
		WithStore(store.NewMemoryStore()),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	assert.NotNil(t, p.Sweeper)
	assert.NotNil(t, p.Chain)
	require.NoError(t, p.Close())
}
