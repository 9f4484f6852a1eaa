// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 流水线指标收集器
type Collector struct {
	// 调用指标
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec

	// 链式执行指标
	chainRunsTotal  *prometheus.CounterVec
	chainStepsTotal *prometheus.CounterVec

	// 进化指标
	evolutionsTotal *prometheus.CounterVec
	sweepDuration   prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器
// reg 为 nil 时注册到默认 Registerer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.invocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_invocations_total",
			Help:      "Total number of plugin invocations",
		},
		[]string{"status"},
	)

	c.invocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_invocation_duration_seconds",
			Help:      "Plugin invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	c.chainRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_runs_total",
			Help:      "Total number of chain runs",
		},
		[]string{"status"},
	)

	c.chainStepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_steps_total",
			Help:      "Total number of chain steps executed",
		},
		[]string{"status"},
	)

	c.evolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evolutions_total",
			Help:      "Total number of agent version evolutions",
		},
		[]string{"reason"},
	)

	c.sweepDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evolution_sweep_duration_seconds",
			Help:      "Evolution sweep duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// RecordInvocation 记录一次插件调用
func (c *Collector) RecordInvocation(status string, duration time.Duration) {
	c.invocationsTotal.WithLabelValues(status).Inc()
	c.invocationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordChainRun 记录一次链式执行
func (c *Collector) RecordChainRun(success bool, succeeded, failed int) {
	status := "failure"
	if success {
		status = "success"
	}
	c.chainRunsTotal.WithLabelValues(status).Inc()
	c.chainStepsTotal.WithLabelValues("success").Add(float64(succeeded))
	c.chainStepsTotal.WithLabelValues("failure").Add(float64(failed))
}

// RecordEvolution 记录一次版本进化
func (c *Collector) RecordEvolution(reason string) {
	c.evolutionsTotal.WithLabelValues(reason).Inc()
}

// ObserveSweep 记录一次进化扫描耗时
func (c *Collector) ObserveSweep(duration time.Duration) {
	c.sweepDuration.Observe(duration.Seconds())
}
