package runner

import (
	"time"

	"github.com/gauntlet-ci/gauntlet/types"
)

// Stats tracks outcome counts for a run
type Stats struct {
	Total     int
	Passed    int
	Failed    int
	Cancelled int
	Ignored   int
	StartTime time.Time
	EndTime   time.Time
}

// RunResult captures one complete execution of a suite
type RunResult struct {
	Suite    string
	RunID    string
	Outcomes []types.Outcome
	Status   types.Status
	Duration time.Duration
	Stats    Stats
}

// NewRunResult initializes an empty result for a run that is starting now.
func NewRunResult(suite, runID string) *RunResult {
	return &RunResult{
		Suite: suite,
		RunID: runID,
		Stats: Stats{StartTime: time.Now()},
	}
}

// Add folds one outcome into the result, preserving emission order.
func (r *RunResult) Add(o types.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Stats.Total++
	switch o.Status {
	case types.StatusSuccess:
		r.Stats.Passed++
	case types.StatusFailure:
		r.Stats.Failed++
	case types.StatusCancelled:
		r.Stats.Cancelled++
	case types.StatusIgnored:
		r.Stats.Ignored++
	}
}

// Finalize stamps the end time and folds the per-outcome statuses into
// the run status.
func (r *RunResult) Finalize() {
	r.Stats.EndTime = time.Now()
	r.Duration = r.Stats.EndTime.Sub(r.Stats.StartTime)
	r.Status = determineRunStatus(r.Stats)
}

// determineRunStatus folds outcome counts into a run-level status. Any
// failure makes the run a failure; a run where nothing passed takes the
// dominant non-passing status; an empty run passes.
func determineRunStatus(stats Stats) types.Status {
	switch {
	case stats.Failed > 0:
		return types.StatusFailure
	case stats.Total == 0 || stats.Passed > 0:
		return types.StatusSuccess
	case stats.Cancelled > 0:
		return types.StatusCancelled
	default:
		return types.StatusIgnored
	}
}

// FailedOutcomes returns the outcomes that count against the run, in
// emission order.
func (r *RunResult) FailedOutcomes() []types.Outcome {
	var failed []types.Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Passed reports whether the run completed without failures.
func (r *RunResult) Passed() bool {
	return r.Status != types.StatusFailure
}
