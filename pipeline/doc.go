// Package pipeline implements the plugin execution pipeline: single plugin
// invocation with reward accrual, the sequential chain orchestrator that
// threads each step's output into the next step's input, and the best-effort
// execution recorder backing both.
//
// Failure philosophy: a step failure never aborts a chain (partial-success),
// and a failure to persist an execution record never aborts the operation
// that produced it.
package pipeline
