package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/evoflow/evoflow/internal/cache"
	"github.com/evoflow/evoflow/internal/metrics"
	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// ChainRequest describes one chain run: an ordered plugin sequence seeded
// with an initial input.
type ChainRequest struct {
	PluginIDs    []string
	InitialInput map[string]any
	TenantID     string
	StrategyID   string
}

// Orchestrator runs an ordered list of plugins, threading each step's
// output into the next step's input.
//
// The per-step loop is strictly sequential: step N+1 must not start until
// step N's outcome is known, because N's output seeds N+1's input. Chains
// are pipelines, not parallel fan-outs.
type Orchestrator struct {
	store   store.Store
	invoker *Invoker
	cache   *cache.VersionCache
	metrics *metrics.Collector
	logger  *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithVersionCache attaches a read-through cache for active-version
// resolution. Cache misses and errors fall back to the store.
func WithVersionCache(c *cache.VersionCache) OrchestratorOption {
	return func(o *Orchestrator) { o.cache = c }
}

// WithChainMetrics attaches a metrics collector.
func WithChainMetrics(c *metrics.Collector) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = c }
}

// NewOrchestrator creates a chain orchestrator.
func NewOrchestrator(st store.Store, invoker *Invoker, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:   st,
		invoker: invoker,
		logger:  logger.With(zap.String("component", "chain")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the chain. The error return is reserved for malformed
// calls; every expected business failure (unresolvable plugins, missing
// active versions, step failures) is encoded in the ChainResult.
//
// Overall Success is true iff at least one step succeeded: a chain is
// still useful when some of its plugins failed.
func (o *Orchestrator) Run(ctx context.Context, req ChainRequest) (*types.ChainResult, error) {
	if len(req.PluginIDs) == 0 {
		return nil, types.NewValidationError("chain requires at least one plugin id")
	}

	plugins, err := o.store.FindPlugins(ctx, store.PluginFilter{IDs: req.PluginIDs})
	if err != nil || len(plugins) == 0 {
		msg := "no plugins found"
		if err != nil {
			msg = "resolve plugins: " + err.Error()
		}
		o.logger.Warn("chain resolution failed",
			zap.Strings("plugin_ids", req.PluginIDs),
			zap.String("error", msg),
		)
		return &types.ChainResult{
			Success: false,
			Err:     msg,
			Results: []types.StepResult{},
			Output:  cloneInput(req.InitialInput),
		}, nil
	}

	// The store may return plugins out of order; re-key and walk the
	// caller-supplied order so step results line up with the request.
	byID := make(map[string]*types.Plugin, len(plugins))
	for i := range plugins {
		byID[plugins[i].ID] = &plugins[i]
	}

	currentInput := cloneInput(req.InitialInput)
	results := make([]types.StepResult, 0, len(req.PluginIDs))
	succeeded, failed := 0, 0

	for _, pluginID := range req.PluginIDs {
		// An aborted chain still returns the step results completed so far.
		if ctx.Err() != nil {
			o.logger.Warn("chain aborted mid-run",
				zap.String("plugin_id", pluginID),
				zap.Int("completed_steps", len(results)),
			)
			break
		}

		plugin, ok := byID[pluginID]
		if !ok {
			results = append(results, types.StepResult{
				PluginID: pluginID,
				Success:  false,
				Error:    "plugin not found",
			})
			failed++
			continue
		}

		version, verr := o.resolveActiveVersion(ctx, plugin.ID)
		if verr != nil {
			// Plugins lacking an active version fail their step but keep
			// their position; the chain moves on.
			results = append(results, types.StepResult{
				PluginID: pluginID,
				Success:  false,
				Error:    verr.Error(),
			})
			failed++
			o.logger.Info("step skipped: no active agent version",
				zap.String("plugin_id", pluginID),
			)
			continue
		}

		res := o.invoker.Invoke(ctx, InvokeRequest{
			PluginID:       pluginID,
			TenantID:       req.TenantID,
			Input:          currentInput,
			AgentVersionID: version.ID,
			StrategyID:     req.StrategyID,
		})

		if res.Success {
			currentInput = mergeOutput(currentInput, res.Output)
			results = append(results, types.StepResult{PluginID: pluginID, Success: true})
			succeeded++
		} else {
			// Step failure does not abort the chain; the next step sees
			// the input unchanged.
			results = append(results, types.StepResult{
				PluginID: pluginID,
				Success:  false,
				Error:    res.Err,
			})
			failed++
			o.logger.Info("chain step failed",
				zap.String("plugin_id", pluginID),
				zap.String("error", res.Err),
			)
		}
	}

	success := succeeded > 0

	o.logger.Info("chain run complete",
		zap.String("tenant_id", req.TenantID),
		zap.Int("total", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Bool("success", success),
	)
	if o.metrics != nil {
		o.metrics.RecordChainRun(success, succeeded, failed)
	}

	return &types.ChainResult{
		Success: success,
		Results: results,
		Output:  currentInput,
	}, nil
}

// resolveActiveVersion resolves the plugin's live version, read-through
// cached when a cache is attached.
func (o *Orchestrator) resolveActiveVersion(ctx context.Context, pluginID string) (*types.AgentVersion, error) {
	if o.cache != nil {
		if v, ok := o.cache.GetActive(ctx, pluginID); ok {
			return v, nil
		}
	}
	v, err := o.store.ActiveAgentVersion(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.SetActive(ctx, v)
	}
	return v, nil
}

// cloneInput copies the caller's seed input so each run mutates its own
// state.
func cloneInput(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// mergeOutput threads a step's output into the running input: structured
// objects spread-merge, anything else is wrapped under "result".
func mergeOutput(current map[string]any, output any) map[string]any {
	switch v := output.(type) {
	case nil:
		return current
	case map[string]any:
		for k, val := range v {
			current[k] = val
		}
	default:
		current["result"] = v
	}
	return current
}
