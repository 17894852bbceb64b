// Package runner executes a frozen set of cases and streams one Outcome
// per case.
//
// The main components are:
//   - Runner: drives one execution of a suite, sequentially in
//     registration order or on a bounded worker pool in completion order
//   - Sharing: the resource provisioning strategy, either one shared
//     acquire/release per run or a fresh pair bracketing every case
//   - RunResult: aggregates the emitted outcomes into run-level statistics
//     and a folded status
//   - ProgressIndicator: receives lifecycle events for long-running runs
//
// Case bodies are isolated from each other: panics are contained at the
// case boundary and classified as failures, and cancellation or ignore
// signals returned by a body become outcome statuses rather than errors.
package runner
