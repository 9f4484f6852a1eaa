package evolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

func seedActiveVersion(t *testing.T, st *store.MemoryStore, pluginID string, version int, age time.Duration, xp int64) *types.AgentVersion {
	t.Helper()
	v := &types.AgentVersion{
		PluginID:  pluginID,
		Version:   version,
		Prompt:    "You are a helpful assistant.",
		Status:    types.VersionStatusActive,
		XP:        xp,
		CreatedAt: time.Now().Add(-age),
	}
	require.NoError(t, st.InsertAgentVersion(context.Background(), v))
	return v
}

func TestLifecycleManager_Evolve(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	plugin := st.SeedPlugin(&types.Plugin{Name: "summarizer", TenantID: "t1", Status: types.PluginStatusActive})
	prior := seedActiveVersion(t, st, plugin.ID, 3, 30*24*time.Hour, 200)

	m := NewLifecycleManager(st, zaptest.NewLogger(t))

	next, err := m.Evolve(ctx, EvolveRequest{
		PluginID:       plugin.ID,
		PriorVersionID: prior.ID,
		CurrentConfig:  prior.Prompt,
		VersionLabel:   prior.Version,
		Feedback: []types.Feedback{
			{Comment: "hallucinates sources", VoteType: types.VoteTypeDown},
		},
		Score:  0.4,
		Reason: ReasonNegativeFeedback,
	})
	require.NoError(t, err)
	require.NotNil(t, next)

	// New version: incremented label, active, zeroed counters.
	assert.Equal(t, 4, next.Version)
	assert.Equal(t, types.VersionStatusActive, next.Status)
	assert.Zero(t, next.XP)
	assert.Zero(t, next.Upvotes)
	assert.Zero(t, next.Downvotes)
	assert.Contains(t, next.Prompt, "hallucinates sources")

	// Prior version is deprecated; exactly one active version remains.
	reloaded, err := st.GetAgentVersion(ctx, prior.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VersionStatusDeprecated, reloaded.Status)

	versions, err := st.FindAgentVersions(ctx, plugin.ID)
	require.NoError(t, err)
	activeCount := 0
	for _, v := range versions {
		if v.Status == types.VersionStatusActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	// The active resolution now lands on the successor.
	active, err := st.ActiveAgentVersion(ctx, plugin.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)
}

func TestLifecycleManager_Evolve_NoFeedbackKeepsPrompt(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	plugin := st.SeedPlugin(&types.Plugin{Name: "router", TenantID: "t1", Status: types.PluginStatusActive})
	prior := seedActiveVersion(t, st, plugin.ID, 1, 30*24*time.Hour, 150)

	m := NewLifecycleManager(st, zaptest.NewLogger(t))

	next, err := m.Evolve(ctx, EvolveRequest{
		PluginID:       plugin.ID,
		PriorVersionID: prior.ID,
		CurrentConfig:  prior.Prompt,
		VersionLabel:   prior.Version,
		Score:          0.9,
		Reason:         ReasonExecutionErrors,
	})
	require.NoError(t, err)

	// No commented feedback: the configuration carries over unchanged.
	assert.Equal(t, prior.Prompt, next.Prompt)
	assert.Equal(t, 2, next.Version)
}

func TestLifecycleManager_Evolve_RequiresPluginID(t *testing.T) {
	m := NewLifecycleManager(store.NewMemoryStore(), zaptest.NewLogger(t))
	_, err := m.Evolve(context.Background(), EvolveRequest{})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
}
