// Package evoflow provides a top-level convenience entry point wiring the
// execution pipeline and the evolution services together.
//
// Usage:
//
//	p, err := evoflow.New(cfg, myInvokeFunc)
//	result, err := p.RunChain(ctx, pipeline.ChainRequest{...})
//	summary, err := p.RunEvolutionSweep(ctx, tenantID)
package evoflow

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/evoflow/evoflow/config"
	"github.com/evoflow/evoflow/evolution"
	"github.com/evoflow/evoflow/internal/cache"
	"github.com/evoflow/evoflow/internal/metrics"
	"github.com/evoflow/evoflow/pipeline"
	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// Pipeline bundles the wired components. Fields are exported so callers
// can reach individual services directly when the facade methods are not
// enough.
type Pipeline struct {
	Store     store.Store
	Recorder  *pipeline.Recorder
	Invoker   *pipeline.Invoker
	Chain     *pipeline.Orchestrator
	Votes     *evolution.Ledger
	Perf      *evolution.Aggregator
	Lifecycle *evolution.LifecycleManager
	Sweeper   *evolution.Sweeper

	cache  *cache.VersionCache
	logger *zap.Logger
}

// Option configures the pipeline built by [New].
type Option func(*options)

type options struct {
	logger     *zap.Logger
	store      store.Store
	registerer prometheus.Registerer
}

// WithLogger overrides the logger built from the config's log section.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore injects a pre-built store (e.g. a MemoryStore) instead of
// opening the configured database.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRegisterer overrides the Prometheus registerer, for tests.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// New wires store, cache, metrics, invoker, orchestrator and evolution
// services from the given config. invoke is the pluggable invocation
// function behind every plugin.
func New(cfg *config.Config, invoke pipeline.InvokeFunc, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = config.NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	st := o.store
	if st == nil {
		gs, err := store.NewGormStore(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		st = gs
	}

	collector := metrics.NewCollector(cfg.MetricsNamespace, o.registerer, logger)

	var vc *cache.VersionCache
	if cfg.Cache.Enabled {
		var err error
		vc, err = cache.NewVersionCache(cfg.Cache.Config, logger)
		if err != nil {
			return nil, err
		}
	}

	recorder := pipeline.NewRecorder(st, logger)
	invoker := pipeline.NewInvoker(st, recorder, invoke, logger,
		pipeline.WithInvokerMetrics(collector),
	)

	chainOpts := []pipeline.OrchestratorOption{pipeline.WithChainMetrics(collector)}
	if vc != nil {
		chainOpts = append(chainOpts, pipeline.WithVersionCache(vc))
	}
	chain := pipeline.NewOrchestrator(st, invoker, logger, chainOpts...)

	ledger := evolution.NewLedger(st, logger)
	aggregator := evolution.NewAggregator(st)

	lifecycleOpts := []evolution.LifecycleOption{evolution.WithLifecycleMetrics(collector)}
	if vc != nil {
		lifecycleOpts = append(lifecycleOpts, evolution.WithLifecycleCache(vc))
	}
	lifecycle := evolution.NewLifecycleManager(st, logger, lifecycleOpts...)

	sweeper := evolution.NewSweeper(st, aggregator, ledger, lifecycle, cfg.Sweep, logger,
		evolution.WithSweeperMetrics(collector),
	)

	return &Pipeline{
		Store:     st,
		Recorder:  recorder,
		Invoker:   invoker,
		Chain:     chain,
		Votes:     ledger,
		Perf:      aggregator,
		Lifecycle: lifecycle,
		Sweeper:   sweeper,
		cache:     vc,
		logger:    logger,
	}, nil
}

// RunChain executes an ordered plugin chain.
func (p *Pipeline) RunChain(ctx context.Context, req pipeline.ChainRequest) (*types.ChainResult, error) {
	return p.Chain.Run(ctx, req)
}

// RunEvolutionSweep evaluates every eligible plugin and evolves those the
// gate selects. tenantID may be empty to sweep all tenants.
func (p *Pipeline) RunEvolutionSweep(ctx context.Context, tenantID string) (*evolution.SweepResult, error) {
	return p.Sweeper.Run(ctx, tenantID)
}

// RecordVote appends one feedback event against an agent version.
func (p *Pipeline) RecordVote(ctx context.Context, v evolution.Vote) error {
	return p.Votes.RecordVote(ctx, v)
}

// Close releases held resources (cache connections; the database handle
// is owned by the store).
func (p *Pipeline) Close() error {
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}
