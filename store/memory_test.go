package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evoflow/evoflow/types"
)

func TestMemoryStore_PluginRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := s.SeedPlugin(&types.Plugin{Name: "a", TenantID: "t1", Status: types.PluginStatusActive, XP: 10})

	got, err := s.GetPlugin(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	// Returned copies do not alias internal state.
	got.Name = "mutated"
	again, err := s.GetPlugin(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)

	require.NoError(t, s.AddPluginXP(ctx, p.ID, 90))
	again, err = s.GetPlugin(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.XP)

	_, err = s.GetPlugin(ctx, "missing")
	assert.True(t, types.IsNotFound(err))
}

func TestMemoryStore_FindPlugins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.SeedPlugin(&types.Plugin{Name: "a", TenantID: "t1", Status: types.PluginStatusActive, XP: 200})
	s.SeedPlugin(&types.Plugin{Name: "b", TenantID: "t1", Status: types.PluginStatusInactive, XP: 200})
	s.SeedPlugin(&types.Plugin{Name: "c", TenantID: "t2", Status: types.PluginStatusActive, XP: 200})
	s.SeedPlugin(&types.Plugin{Name: "d", TenantID: "t1", Status: types.PluginStatusActive, XP: 5})

	got, err := s.FindPlugins(ctx, PluginFilter{TenantID: "t1", Status: types.PluginStatusActive, MinXP: 100})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
}

func TestMemoryStore_NewestActiveWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := s.SeedPlugin(&types.Plugin{Name: "a", TenantID: "t1", Status: types.PluginStatusActive})

	old := &types.AgentVersion{
		PluginID:  p.ID,
		Version:   1,
		Status:    types.VersionStatusActive,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.InsertAgentVersion(ctx, old))

	fresh := &types.AgentVersion{PluginID: p.ID, Version: 2, Status: types.VersionStatusActive}
	require.NoError(t, s.InsertAgentVersion(ctx, fresh))

	active, err := s.ActiveAgentVersion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, active.ID)

	_, err = s.ActiveAgentVersion(ctx, "no-such-plugin")
	assert.True(t, types.IsNotFound(err))
}

func TestMemoryStore_ExecutionAndVoteLogs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.InsertExecution(ctx, &types.ExecutionRecord{
		PluginID: "p1", AgentVersionID: "v1", Status: types.ExecutionStatusFailure,
	}))
	require.NoError(t, s.InsertExecution(ctx, &types.ExecutionRecord{
		PluginID: "p1", AgentVersionID: "v1", Status: types.ExecutionStatusSuccess,
	}))

	failures, err := s.CountExecutionFailures(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), failures)

	require.NoError(t, s.InsertVote(ctx, &types.VoteRecord{AgentVersionID: "v1", Type: types.VoteTypeUp}))
	err = s.InsertVote(ctx, &types.VoteRecord{AgentVersionID: "v1", Type: "bogus"})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	votes, err := s.FindVotes(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}
