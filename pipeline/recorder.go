package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/evoflow/evoflow/store"
	"github.com/evoflow/evoflow/types"
)

// Entry is the structured input to the recorder: one unit of work's
// identity, outcome and measurements.
type Entry struct {
	PluginID       string
	AgentVersionID string
	StrategyID     string
	TenantID       string
	Status         types.ExecutionStatus
	Input          any
	Output         any
	Err            string
	Latency        time.Duration
	Reward         int64
}

// Recorder persists one ExecutionRecord per unit of work.
type Recorder struct {
	store  store.Store
	logger *zap.Logger
}

// NewRecorder creates a Recorder writing to the given store.
func NewRecorder(st store.Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:  st,
		logger: logger.With(zap.String("component", "recorder")),
	}
}

// Record converts the entry into a persisted ExecutionRecord and returns
// its id.
func (r *Recorder) Record(ctx context.Context, e Entry) (string, error) {
	rec := &types.ExecutionRecord{
		PluginID:       e.PluginID,
		AgentVersionID: e.AgentVersionID,
		StrategyID:     e.StrategyID,
		TenantID:       e.TenantID,
		Status:         e.Status,
		Input:          snapshot(e.Input),
		Output:         snapshot(e.Output),
		Error:          e.Err,
		LatencyMS:      e.Latency.Milliseconds(),
		Reward:         e.Reward,
	}
	if err := r.store.InsertExecution(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// RecordBestEffort writes the record and swallows any persistence failure.
// Logging is always best-effort relative to the primary business operation;
// a failure here is logged and never surfaced to the caller.
func (r *Recorder) RecordBestEffort(ctx context.Context, e Entry) {
	if _, err := r.Record(ctx, e); err != nil {
		r.logger.Warn("failed to persist execution record",
			zap.String("plugin_id", e.PluginID),
			zap.String("tenant_id", e.TenantID),
			zap.String("status", string(e.Status)),
			zap.Error(err),
		)
	}
}

// snapshot serialises an input/output value for the append-only log.
func snapshot(v any) string {
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
