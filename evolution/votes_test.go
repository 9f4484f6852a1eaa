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

func TestLedger_RecordVote_AppendsAndBumpsCounter(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	plugin := st.SeedPlugin(&types.Plugin{Name: "p", TenantID: "t1", Status: types.PluginStatusActive})
	ver := seedActiveVersion(t, st, plugin.ID, 1, time.Hour, 0)

	l := NewLedger(st, zaptest.NewLogger(t))

	require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: ver.ID, VoterID: "u1", Type: types.VoteTypeUp, Comment: "great"}))
	require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: ver.ID, VoterID: "u2", Type: types.VoteTypeDown, Comment: "slow"}))
	require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: ver.ID, VoterID: "u3", Type: types.VoteTypeDown}))

	// The log is the source of truth.
	votes, err := st.FindVotes(ctx, ver.ID)
	require.NoError(t, err)
	require.Len(t, votes, 3)

	// The row counters mirror it.
	reloaded, err := st.GetAgentVersion(ctx, ver.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.Upvotes)
	assert.Equal(t, int64(2), reloaded.Downvotes)
}

func TestLedger_RecordVote_CounterFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	l := NewLedger(st, zaptest.NewLogger(t))

	// Version row does not exist: the counter bump fails, the append does
	// not. The caller still sees success.
	require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: "ghost", VoterID: "u1", Type: types.VoteTypeUp}))

	votes, err := st.FindVotes(ctx, "ghost")
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestLedger_Stats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	l := NewLedger(st, zaptest.NewLogger(t))

	stats, err := l.Stats(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, VoteStats{}, stats, "no votes means zero ratio, not NaN")

	for i := 0; i < 7; i++ {
		require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: "v1", VoterID: "u", Type: types.VoteTypeUp}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: "v1", VoterID: "u", Type: types.VoteTypeDown}))
	}

	stats, err = l.Stats(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Upvotes)
	assert.Equal(t, int64(3), stats.Downvotes)
	assert.Equal(t, int64(10), stats.Total)
	assert.InDelta(t, 0.3, stats.Ratio, 1e-9)
}

func TestLedger_Feedback(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	l := NewLedger(st, zaptest.NewLogger(t))

	require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: "v1", VoterID: "u1", Type: types.VoteTypeDown, Comment: "wrong tone"}))
	require.NoError(t, l.RecordVote(ctx, Vote{AgentVersionID: "v1", VoterID: "u2", Type: types.VoteTypeUp}))

	feedback, err := l.Feedback(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, feedback, 2)
	assert.Equal(t, "wrong tone", feedback[0].Comment)
	assert.Equal(t, types.VoteTypeDown, feedback[0].VoteType)
	assert.Empty(t, feedback[1].Comment)
}
