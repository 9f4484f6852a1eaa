package evolution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evoflow/evoflow/internal/metrics"
	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// SweepConfig parameterises the evolution sweep.
type SweepConfig struct {
	// MinPluginXP is the eligibility prefilter on plugin-level reward.
	// It overlaps in purpose with the gate's version-level XP floor;
	// both are applied, matching the established behaviour.
	MinPluginXP int64 `yaml:"min_plugin_xp" json:"min_plugin_xp"`
	// Concurrency bounds the per-plugin fan-out.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
}

// DefaultSweepConfig returns the established sweep policy.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MinPluginXP: 100,
		Concurrency: 8,
		Thresholds:  DefaultThresholds(),
	}
}

// SweepDetail reports what happened to one plugin during a sweep.
type SweepDetail struct {
	PluginID     string `json:"plugin_id"`
	PluginName   string `json:"plugin_name"`
	Action       string `json:"action"` // evolved | skipped | error
	Reason       string `json:"reason,omitempty"`
	NewVersionID string `json:"new_version_id,omitempty"`
}

// Sweep actions.
const (
	ActionEvolved = "evolved"
	ActionSkipped = "skipped"
	ActionError   = "error"
)

// SweepResult is the batch summary consumed by admin tooling; its shape is
// part of the external contract.
type SweepResult struct {
	Evolved int           `json:"evolved"`
	Skipped int           `json:"skipped"`
	Errors  int           `json:"errors"`
	Details []SweepDetail `json:"details"`
}

// Sweeper batches gate evaluation and conditional evolution across all
// eligible plugins. Plugins are fully independent, so each one is an
// independent unit of work; the fan-out is bounded only to be polite to
// the backing store.
type Sweeper struct {
	store      store.Store
	aggregator *Aggregator
	ledger     *Ledger
	lifecycle  *LifecycleManager
	config     SweepConfig
	metrics    *metrics.Collector
	logger     *zap.Logger
	now        func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperMetrics attaches a metrics collector.
func WithSweeperMetrics(c *metrics.Collector) SweeperOption {
	return func(s *Sweeper) { s.metrics = c }
}

// WithSweeperClock overrides the time source, for tests.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates an evolution sweeper.
func NewSweeper(st store.Store, aggregator *Aggregator, ledger *Ledger, lifecycle *LifecycleManager, cfg SweepConfig, logger *zap.Logger, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultSweepConfig().Concurrency
	}
	s := &Sweeper{
		store:      st,
		aggregator: aggregator,
		ledger:     ledger,
		lifecycle:  lifecycle,
		config:     cfg,
		logger:     logger.With(zap.String("component", "sweep")),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps all eligible plugins, optionally scoped to one tenant.
// Per-plugin failures are caught, counted and reported in Details; one
// plugin's failure never stops the sweep from processing the rest.
func (s *Sweeper) Run(ctx context.Context, tenantID string) (*SweepResult, error) {
	start := s.now()

	plugins, err := s.store.FindPlugins(ctx, store.PluginFilter{
		TenantID: tenantID,
		Status:   types.PluginStatusActive,
		MinXP:    s.config.MinPluginXP,
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible plugins: %w", err)
	}

	var mu sync.Mutex
	details := make([]SweepDetail, 0, len(plugins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for _, plugin := range plugins {
		g.Go(func() error {
			detail := s.sweepOne(gctx, plugin)
			mu.Lock()
			details = append(details, detail)
			mu.Unlock()
			// Per-plugin errors land in the detail, never here: a
			// returned error would cancel the sibling units of work.
			return nil
		})
	}
	_ = g.Wait()

	result := &SweepResult{Details: details}
	for _, d := range details {
		switch d.Action {
		case ActionEvolved:
			result.Evolved++
		case ActionError:
			result.Errors++
		default:
			result.Skipped++
		}
	}

	elapsed := time.Since(start)
	s.logger.Info("evolution sweep complete",
		zap.String("tenant_id", tenantID),
		zap.Int("plugins", len(plugins)),
		zap.Int("evolved", result.Evolved),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.Duration("elapsed", elapsed),
	)
	if s.metrics != nil {
		s.metrics.ObserveSweep(elapsed)
	}

	return result, nil
}

// sweepOne evaluates a single plugin and evolves it when the gate fires.
func (s *Sweeper) sweepOne(ctx context.Context, plugin types.Plugin) SweepDetail {
	detail := SweepDetail{PluginID: plugin.ID, PluginName: plugin.Name}

	versions, err := s.store.FindAgentVersions(ctx, plugin.ID)
	if err != nil {
		detail.Action = ActionError
		detail.Reason = fmt.Sprintf("list versions: %v", err)
		return detail
	}
	if len(versions) == 0 {
		detail.Action = ActionSkipped
		detail.Reason = "no agent versions"
		return detail
	}

	active, err := s.store.ActiveAgentVersion(ctx, plugin.ID)
	if err != nil {
		if types.IsNotFound(err) {
			detail.Action = ActionSkipped
			detail.Reason = "no active version"
			return detail
		}
		detail.Action = ActionError
		detail.Reason = fmt.Sprintf("resolve active version: %v", err)
		return detail
	}

	perf, err := s.aggregator.Compute(ctx, active.ID)
	if err != nil {
		detail.Action = ActionError
		detail.Reason = fmt.Sprintf("aggregate performance: %v", err)
		return detail
	}

	votes, err := s.ledger.Stats(ctx, active.ID)
	if err != nil {
		detail.Action = ActionError
		detail.Reason = fmt.Sprintf("aggregate votes: %v", err)
		return detail
	}

	decision := s.config.Thresholds.ShouldEvolve(active, perf, votes, s.now())
	if !decision.Needed {
		detail.Action = ActionSkipped
		detail.Reason = decision.Reason
		return detail
	}

	feedback, err := s.ledger.Feedback(ctx, active.ID)
	if err != nil {
		detail.Action = ActionError
		detail.Reason = fmt.Sprintf("collect feedback: %v", err)
		return detail
	}

	next, err := s.lifecycle.Evolve(ctx, EvolveRequest{
		PluginID:       plugin.ID,
		PriorVersionID: active.ID,
		CurrentConfig:  active.Prompt,
		VersionLabel:   active.Version,
		Feedback:       feedback,
		Score:          perf.SuccessRate,
		Reason:         decision.Reason,
	})
	if err != nil {
		detail.Action = ActionError
		detail.Reason = err.Error()
		if next != nil {
			// The insert landed; only the deprecation of the prior
			// version failed.
			detail.NewVersionID = next.ID
		}
		return detail
	}

	detail.Action = ActionEvolved
	detail.Reason = decision.Reason
	detail.NewVersionID = next.ID
	return detail
}
