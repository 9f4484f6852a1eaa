// Package store defines the record-store boundary of the pipeline and its
// GORM and in-memory implementations.
//
// The pipeline treats persistence as a remote collaborator: every method is
// a network round trip, and callers layer retry/backoff on top via the
// retry package. Records are typed per entity and validated at this
// boundary rather than passed around as open bags of fields.
package store

import (
	"context"

	"github.com/evoflow/evoflow/types"
)

// PluginFilter narrows FindPlugins. Zero values mean "no constraint".
type PluginFilter struct {
	IDs      []string
	TenantID string
	Status   types.PluginStatus
	MinXP    int64
}

// Store is the typed record-store contract consumed by the pipeline.
//
// Implementations must honour two log-structured guarantees: execution and
// vote records are append-only and immutable, and ActiveAgentVersion must
// tolerate the zero-or-two-active consistency window of the version swap by
// deterministically returning the most recently created active row.
type Store interface {
	// Plugins
	GetPlugin(ctx context.Context, id string) (*types.Plugin, error)
	FindPlugins(ctx context.Context, filter PluginFilter) ([]types.Plugin, error)
	// AddPluginXP increments the plugin's accumulated reward. Best-effort
	// counter semantics: callers accept small undercounts under load.
	AddPluginXP(ctx context.Context, id string, delta int64) error

	// Agent versions
	GetAgentVersion(ctx context.Context, id string) (*types.AgentVersion, error)
	ActiveAgentVersion(ctx context.Context, pluginID string) (*types.AgentVersion, error)
	FindAgentVersions(ctx context.Context, pluginID string) ([]types.AgentVersion, error)
	InsertAgentVersion(ctx context.Context, v *types.AgentVersion) error
	UpdateAgentVersionStatus(ctx context.Context, id string, status types.VersionStatus) error
	// AddAgentVersionXP increments the version's accumulated reward.
	// Same best-effort counter semantics as AddPluginXP.
	AddAgentVersionXP(ctx context.Context, id string, delta int64) error
	// AddVoteCount bumps the up/down counter on the version row.
	AddVoteCount(ctx context.Context, id string, vote types.VoteType) error

	// Execution log (append-only)
	InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error
	FindExecutions(ctx context.Context, agentVersionID string) ([]types.ExecutionRecord, error)
	CountExecutionFailures(ctx context.Context, agentVersionID string) (int64, error)

	// Vote log (append-only)
	InsertVote(ctx context.Context, rec *types.VoteRecord) error
	FindVotes(ctx context.Context, agentVersionID string) ([]types.VoteRecord, error)
}
