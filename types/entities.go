package types

import "time"

// PluginStatus is the administrative status of a plugin.
type PluginStatus string

const (
	PluginStatusActive   PluginStatus = "active"
	PluginStatusInactive PluginStatus = "inactive"
)

// VersionStatus is the lifecycle status of an agent version.
type VersionStatus string

const (
	VersionStatusActive     VersionStatus = "active"
	VersionStatusDeprecated VersionStatus = "deprecated"
)

// ExecutionStatus is the outcome of a single plugin invocation.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailure ExecutionStatus = "failure"
)

// VoteType classifies a feedback event.
type VoteType string

const (
	VoteTypeUp   VoteType = "up"
	VoteTypeDown VoteType = "down"
)

// Plugin is a named, tenant-owned unit of capability that can be invoked,
// optionally through one of its agent versions. The pipeline never deletes
// plugins; administrative edits only flip Status to inactive.
type Plugin struct {
	ID       string       `gorm:"primaryKey;size:36" json:"id"`
	TenantID string       `gorm:"size:36;index" json:"tenant_id"`
	Name     string       `gorm:"size:255" json:"name"`
	Status   PluginStatus `gorm:"size:16;index" json:"status"`

	// XP is the accumulated reward score across all invocations.
	// Incremented best-effort; small undercounts under concurrent load
	// are accepted (no native atomic increment in the store contract).
	XP  int64   `json:"xp"`
	ROI float64 `json:"roi"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentVersion is a versioned configuration ("prompt") bound to a plugin.
// Invariant: at most one active version per plugin. The version swap is a
// two-step remote write, so readers must tolerate a brief window with zero
// or two active rows and resolve by newest CreatedAt.
type AgentVersion struct {
	ID       string        `gorm:"primaryKey;size:36" json:"id"`
	PluginID string        `gorm:"size:36;index" json:"plugin_id"`
	Version  int           `json:"version"`
	Prompt   string        `gorm:"type:text" json:"prompt"`
	Status   VersionStatus `gorm:"size:16;index" json:"status"`

	XP        int64  `json:"xp"`
	Upvotes   int64  `json:"upvotes"`
	Downvotes int64  `json:"downvotes"`
	CreatedBy string `gorm:"size:36" json:"created_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutionRecord is the append-only log entry for one plugin invocation.
// Immutable once written.
type ExecutionRecord struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	PluginID       string          `gorm:"size:36;index" json:"plugin_id"`
	AgentVersionID string          `gorm:"size:36;index" json:"agent_version_id,omitempty"`
	StrategyID     string          `gorm:"size:36" json:"strategy_id,omitempty"`
	TenantID       string          `gorm:"size:36;index" json:"tenant_id"`
	Status         ExecutionStatus `gorm:"size:16;index" json:"status"`

	// Input and Output are JSON snapshots of the step's input/output.
	Input  string `gorm:"type:text" json:"input,omitempty"`
	Output string `gorm:"type:text" json:"output,omitempty"`
	Error  string `gorm:"type:text" json:"error,omitempty"`

	LatencyMS int64 `json:"latency_ms"`
	// Reward earned by this invocation; zero on failure.
	Reward int64 `json:"reward"`

	CreatedAt time.Time `json:"created_at"`
}

// VoteRecord is one user feedback event against an agent version.
// Immutable, append-only.
type VoteRecord struct {
	ID             string   `gorm:"primaryKey;size:36" json:"id"`
	AgentVersionID string   `gorm:"size:36;index" json:"agent_version_id"`
	VoterID        string   `gorm:"size:36" json:"voter_id"`
	Type           VoteType `gorm:"size:8" json:"type"`
	Comment        string   `gorm:"type:text" json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Feedback is the evolver-facing view of a vote: the comment, its polarity
// and when it was cast.
type Feedback struct {
	Comment   string    `json:"comment"`
	VoteType  VoteType  `json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
}

// StepResult is the per-step outcome within one chain run.
type StepResult struct {
	PluginID string `json:"plugin_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// ChainResult is the ephemeral result of one chain run. It is returned to
// the caller and summarised in logs, never persisted as its own entity.
type ChainResult struct {
	Success bool           `json:"success"`
	Err     string         `json:"error,omitempty"`
	Results []StepResult   `json:"results"`
	Output  map[string]any `json:"output"`
}
