package evolution

import (
	"context"

	"go.uber.org/zap"

	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// VoteStats is the running tally for one agent version.
type VoteStats struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	Total     int64 `json:"total_votes"`
	// Ratio is downvotes/total, 0 when there are no votes.
	Ratio float64 `json:"ratio"`
}

// Vote is one feedback event to record.
type Vote struct {
	AgentVersionID string
	VoterID        string
	Type           types.VoteType
	Comment        string
}

// Ledger records feedback events and exposes running totals. The
// append-only vote log is the source of truth; the counters on the
// AgentVersion row are a best-effort convenience.
type Ledger struct {
	store  store.Store
	logger *zap.Logger
}

// NewLedger creates a vote ledger.
func NewLedger(st store.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  st,
		logger: logger.With(zap.String("component", "votes")),
	}
}

// RecordVote appends a VoteRecord and bumps the matching counter on the
// version row. The append is the primary operation; the counter increment
// is best-effort and non-transactional with it.
func (l *Ledger) RecordVote(ctx context.Context, v Vote) error {
	rec := &types.VoteRecord{
		AgentVersionID: v.AgentVersionID,
		VoterID:        v.VoterID,
		Type:           v.Type,
		Comment:        v.Comment,
	}
	if err := l.store.InsertVote(ctx, rec); err != nil {
		return err
	}

	if err := l.store.AddVoteCount(ctx, v.AgentVersionID, v.Type); err != nil {
		l.logger.Warn("failed to bump vote counter",
			zap.String("agent_version_id", v.AgentVersionID),
			zap.String("type", string(v.Type)),
			zap.Error(err),
		)
	}
	return nil
}

// Stats tallies the vote log for the agent version.
func (l *Ledger) Stats(ctx context.Context, agentVersionID string) (VoteStats, error) {
	votes, err := l.store.FindVotes(ctx, agentVersionID)
	if err != nil {
		return VoteStats{}, err
	}

	var stats VoteStats
	for _, v := range votes {
		if v.Type == types.VoteTypeDown {
			stats.Downvotes++
		} else {
			stats.Upvotes++
		}
	}
	stats.Total = stats.Upvotes + stats.Downvotes
	if stats.Total > 0 {
		stats.Ratio = float64(stats.Downvotes) / float64(stats.Total)
	}
	return stats, nil
}

// Feedback returns the evolver-facing view of the vote log.
func (l *Ledger) Feedback(ctx context.Context, agentVersionID string) ([]types.Feedback, error) {
	votes, err := l.store.FindVotes(ctx, agentVersionID)
	if err != nil {
		return nil, err
	}
	feedback := make([]types.Feedback, 0, len(votes))
	for _, v := range votes {
		feedback = append(feedback, types.Feedback{
			Comment:   v.Comment,
			VoteType:  v.Type,
			CreatedAt: v.CreatedAt,
		})
	}
	return feedback, nil
}
