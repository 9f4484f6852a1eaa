package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/evoflow/evoflow/internal/metrics"
	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// InvokeFunc is the pluggable invocation function behind a plugin, e.g. a
// call into a generative model. version is nil when the invocation is not
// bound to a specific agent version. The returned output may be any
// JSON-serialisable value.
type InvokeFunc func(ctx context.Context, plugin *types.Plugin, version *types.AgentVersion, input map[string]any) (any, error)

// RewardFunc derives the reward for a successful invocation from its
// latency and output.
type RewardFunc func(latencyMS int64, output any) int64

// DefaultReward is the fallback reward policy: floor(latencyMS/100).
// Note this rewards slower invocations more; the formula is kept for
// compatibility with the established XP convention so that every
// invocation contributes some signal to evolution.
func DefaultReward(latencyMS int64, _ any) int64 {
	return latencyMS / 100
}

// InvokeRequest identifies one unit of work for the invoker.
type InvokeRequest struct {
	PluginID       string
	TenantID       string
	Input          map[string]any
	AgentVersionID string
	StrategyID     string
}

// InvokeResult is the structured outcome of one invocation. All failure
// paths are encoded here; Invoke never panics for business failures.
type InvokeResult struct {
	Success      bool
	Output       any
	Err          string
	LatencyMS    int64
	RewardEarned int64
}

// Invoker executes a single plugin, optionally bound to an agent version,
// and always leaves an execution record behind.
type Invoker struct {
	store    store.Store
	recorder *Recorder
	invoke   InvokeFunc
	reward   RewardFunc
	limiter  *rate.Limiter
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRateLimit caps the invocation rate across all callers of this
// invoker. Zero limit means unlimited.
func WithRateLimit(limit rate.Limit, burst int) InvokerOption {
	return func(i *Invoker) {
		if limit > 0 {
			i.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithRewardFunc overrides the default latency-derived reward policy.
func WithRewardFunc(fn RewardFunc) InvokerOption {
	return func(i *Invoker) {
		if fn != nil {
			i.reward = fn
		}
	}
}

// WithInvokerMetrics attaches a metrics collector.
func WithInvokerMetrics(c *metrics.Collector) InvokerOption {
	return func(i *Invoker) { i.metrics = c }
}

// NewInvoker creates an Invoker around the pluggable invocation function.
func NewInvoker(st store.Store, recorder *Recorder, fn InvokeFunc, logger *zap.Logger, opts ...InvokerOption) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := &Invoker{
		store:    st,
		recorder: recorder,
		invoke:   fn,
		reward:   DefaultReward,
		logger:   logger.With(zap.String("component", "invoker")),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs one plugin invocation end to end: resolve, invoke, record,
// accrue reward. Resolution failures are terminal for the step; every
// outcome, terminal or not, produces an execution record.
func (i *Invoker) Invoke(ctx context.Context, req InvokeRequest) InvokeResult {
	plugin, err := i.store.GetPlugin(ctx, req.PluginID)
	if err != nil {
		return i.fail(ctx, req, 0, fmt.Sprintf("resolve plugin: %v", err))
	}

	var version *types.AgentVersion
	if req.AgentVersionID != "" {
		version, err = i.store.GetAgentVersion(ctx, req.AgentVersionID)
		if err != nil {
			return i.fail(ctx, req, 0, fmt.Sprintf("resolve agent version: %v", err))
		}
	}

	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return i.fail(ctx, req, 0, fmt.Sprintf("rate limit wait: %v", err))
		}
	}

	start := time.Now()
	output, err := i.safeInvoke(ctx, plugin, version, req.Input)
	latency := time.Since(start)

	if err != nil {
		return i.fail(ctx, req, latency, err.Error())
	}

	reward := i.reward(latency.Milliseconds(), output)

	i.recorder.RecordBestEffort(ctx, Entry{
		PluginID:       req.PluginID,
		AgentVersionID: req.AgentVersionID,
		StrategyID:     req.StrategyID,
		TenantID:       req.TenantID,
		Status:         types.ExecutionStatusSuccess,
		Input:          req.Input,
		Output:         output,
		Latency:        latency,
		Reward:         reward,
	})

	// Reward accrual is best-effort and independent of the log write.
	if reward > 0 {
		if err := i.store.AddPluginXP(ctx, req.PluginID, reward); err != nil {
			i.logger.Warn("failed to accrue plugin reward",
				zap.String("plugin_id", req.PluginID),
				zap.Int64("reward", reward),
				zap.Error(err),
			)
		}
		if req.AgentVersionID != "" {
			if err := i.store.AddAgentVersionXP(ctx, req.AgentVersionID, reward); err != nil {
				i.logger.Warn("failed to accrue agent version reward",
					zap.String("agent_version_id", req.AgentVersionID),
					zap.Int64("reward", reward),
					zap.Error(err),
				)
			}
		}
	}

	if i.metrics != nil {
		i.metrics.RecordInvocation(string(types.ExecutionStatusSuccess), latency)
	}

	return InvokeResult{
		Success:      true,
		Output:       output,
		LatencyMS:    latency.Milliseconds(),
		RewardEarned: reward,
	}
}

// safeInvoke shields the pipeline from a panicking invocation function.
func (i *Invoker) safeInvoke(ctx context.Context, plugin *types.Plugin, version *types.AgentVersion, input map[string]any) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewError(types.ErrInvocation, fmt.Sprintf("invocation panicked: %v", r))
		}
	}()
	if i.invoke == nil {
		return nil, types.NewError(types.ErrInvocation, "no invocation function configured")
	}
	return i.invoke(ctx, plugin, version, input)
}

// fail records a failed invocation and returns its structured result.
// Reward is always zero on failure.
func (i *Invoker) fail(ctx context.Context, req InvokeRequest, latency time.Duration, msg string) InvokeResult {
	i.recorder.RecordBestEffort(ctx, Entry{
		PluginID:       req.PluginID,
		AgentVersionID: req.AgentVersionID,
		StrategyID:     req.StrategyID,
		TenantID:       req.TenantID,
		Status:         types.ExecutionStatusFailure,
		Input:          req.Input,
		Err:            msg,
		Latency:        latency,
	})

	if i.metrics != nil {
		i.metrics.RecordInvocation(string(types.ExecutionStatusFailure), latency)
	}

	i.logger.Debug("invocation failed",
		zap.String("plugin_id", req.PluginID),
		zap.String("error", msg),
	)

	return InvokeResult{
		Success:   false,
		Err:       msg,
		LatencyMS: latency.Milliseconds(),
	}
}
