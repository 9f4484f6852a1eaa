// Package evolution decides when an agent version has outlived its
// usefulness and synthesises its successor.
//
// Signals flow in from the execution log (performance aggregation), the
// vote ledger (user feedback) and the version's own counters; a pure,
// ordered policy chain (the gate) turns them into an evolve/keep decision;
// the lifecycle manager performs the two-step version swap; and the sweeper
// batches the whole thing across eligible plugins.
package evolution
