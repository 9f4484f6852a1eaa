package evolution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evoflow/evoflow/internal/cache"
	"github.com/evoflow/evoflow/internal/metrics"
	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// EvolveRequest describes one version supersession.
type EvolveRequest struct {
	PluginID       string
	PriorVersionID string
	CurrentConfig  string
	VersionLabel   int
	Feedback       []types.Feedback
	Score          float64
	Reason         string
	CreatedBy      string
}

// LifecycleManager performs the version swap: create the new active
// version, deprecate the prior one, log the transition.
//
// The two writes are independent remote operations, not a transaction.
// Between them a plugin briefly exposes two active versions (or zero, if
// the insert is observed before replication). Readers resolve the active
// version as newest-created-wins, which makes the window harmless; it is
// an accepted eventual-consistency property, not a bug to paper over.
type LifecycleManager struct {
	store   store.Store
	cache   *cache.VersionCache
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// LifecycleOption configures a LifecycleManager.
type LifecycleOption func(*LifecycleManager)

// WithLifecycleCache attaches the active-version cache so swaps
// invalidate stale entries.
func WithLifecycleCache(c *cache.VersionCache) LifecycleOption {
	return func(m *LifecycleManager) { m.cache = c }
}

// WithLifecycleMetrics attaches a metrics collector.
func WithLifecycleMetrics(c *metrics.Collector) LifecycleOption {
	return func(m *LifecycleManager) { m.metrics = c }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) LifecycleOption {
	return func(m *LifecycleManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewLifecycleManager creates a version lifecycle manager.
func NewLifecycleManager(st store.Store, logger *zap.Logger, opts ...LifecycleOption) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LifecycleManager{
		store:  st,
		logger: logger.With(zap.String("component", "lifecycle")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evolve synthesises the successor configuration, activates it and
// deprecates the prior version. On success exactly one active version
// remains for the plugin.
func (m *LifecycleManager) Evolve(ctx context.Context, req EvolveRequest) (*types.AgentVersion, error) {
	if req.PluginID == "" {
		return nil, types.NewValidationError("evolve requires a plugin id")
	}

	newPrompt := EvolvePrompt(req.CurrentConfig, req.Feedback, req.Score, m.now())

	next := &types.AgentVersion{
		PluginID:  req.PluginID,
		Version:   req.VersionLabel + 1,
		Prompt:    newPrompt,
		Status:    types.VersionStatusActive,
		CreatedBy: req.CreatedBy,
	}
	if err := m.store.InsertAgentVersion(ctx, next); err != nil {
		return nil, fmt.Errorf("insert new agent version: %w", err)
	}

	if req.PriorVersionID != "" {
		if err := m.store.UpdateAgentVersionStatus(ctx, req.PriorVersionID, types.VersionStatusDeprecated); err != nil {
			// The new version is live; the stale active row widens the
			// consistency window until a later pass deprecates it.
			m.logger.Warn("failed to deprecate prior version",
				zap.String("plugin_id", req.PluginID),
				zap.String("prior_version_id", req.PriorVersionID),
				zap.String("new_version_id", next.ID),
				zap.Error(err),
			)
			return next, fmt.Errorf("deprecate prior version %s: %w", req.PriorVersionID, err)
		}
	}

	if m.cache != nil {
		m.cache.Invalidate(ctx, req.PluginID)
	}
	if m.metrics != nil {
		m.metrics.RecordEvolution(req.Reason)
	}

	m.logger.Info("agent version evolved",
		zap.String("plugin_id", req.PluginID),
		zap.String("prior_version_id", req.PriorVersionID),
		zap.String("new_version_id", next.ID),
		zap.Int("new_version", next.Version),
		zap.String("reason", req.Reason),
	)

	return next, nil
}
