package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gauntlet-ci/gauntlet/logging"
	"github.com/gauntlet-ci/gauntlet/metrics"
	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/types"
)

const (
	// DefaultMaxParallelism is the worker bound applied when no explicit
	// parallelism is configured. It is effectively unbounded: the scheduler
	// never starts more workers than there are cases.
	DefaultMaxParallelism = 4096

	// maxStreamBuffer caps outcome channel buffering regardless of the
	// configured parallelism.
	maxStreamBuffer = 100
)

// Config holds configuration for creating a Runner
type Config[R any] struct {
	Suite        string
	Cases        []registry.Case[R]
	Resource     registry.Resource[R]
	Sharing      Sharing
	Parallelism  int // values below 1 run sequentially in registration order
	RunID        string
	Log          *slog.Logger
	Progress     ProgressIndicator
	EchoCaseLogs bool // forward case output to the engine logger as it arrives
}

// Runner executes a frozen set of cases against a resource and streams
// one Outcome per case.
type Runner[R any] struct {
	suite        string
	cases        []registry.Case[R]
	resource     registry.Resource[R]
	sharing      Sharing
	parallelism  int
	runID        string
	log          *slog.Logger
	progress     ProgressIndicator
	echoCaseLogs bool
	tracer       trace.Tracer

	done   chan struct{} // closed when the stream has finished
	runErr error
}

// NewRunner creates a runner for one execution of the suite.
func NewRunner[R any](cfg Config[R]) (*Runner[R], error) {
	if cfg.Resource == nil {
		return nil, fmt.Errorf("resource is required")
	}
	if !cfg.Sharing.Valid() {
		return nil, fmt.Errorf("unknown sharing mode %q", cfg.Sharing)
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	return &Runner[R]{
		suite:        cfg.Suite,
		cases:        cfg.Cases,
		resource:     cfg.Resource,
		sharing:      cfg.Sharing,
		parallelism:  clampParallelism(cfg.Parallelism),
		runID:        cfg.RunID,
		log:          cfg.Log.With("suite", cfg.Suite, "run_id", cfg.RunID),
		progress:     cfg.Progress,
		echoCaseLogs: cfg.EchoCaseLogs,
		tracer:       otel.Tracer("gauntlet runner"),
		done:         make(chan struct{}),
	}, nil
}

// clampParallelism keeps the worker bound at 1 or above.
func clampParallelism(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// RunID returns the identifier for this execution.
func (r *Runner[R]) RunID() string {
	return r.runID
}

// Stream starts the run and returns the outcome stream. Exactly one
// Outcome is emitted per case, in registration order when parallelism is 1
// and in completion order otherwise. The caller must drain the channel;
// it is closed when the run is over. Err reports run-level failures once
// the channel has closed.
func (r *Runner[R]) Stream(ctx context.Context) <-chan types.Outcome {
	workers := r.workerCount()
	out := make(chan types.Outcome, bufferSize(workers))

	go func() {
		defer close(out)
		defer close(r.done)
		r.execute(ctx, out, workers)
	}()

	return out
}

// Err reports the run-level error, if any. It must only be called after
// the Stream channel has closed.
func (r *Runner[R]) Err() error {
	select {
	case <-r.done:
		return r.runErr
	default:
		return fmt.Errorf("stream still running")
	}
}

// Collect drains the stream into a RunResult, invoking report (when non-nil)
// once per outcome in emission order.
func (r *Runner[R]) Collect(ctx context.Context, report func(types.Outcome)) (*RunResult, error) {
	result := NewRunResult(r.suite, r.runID)
	for o := range r.Stream(ctx) {
		result.Add(o)
		if report != nil {
			report(o)
		}
	}
	result.Finalize()

	if err := r.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner[R]) workerCount() int {
	workers := r.parallelism
	if len(r.cases) < workers {
		workers = len(r.cases)
	}
	return clampParallelism(workers)
}

// bufferSize keeps channel buffering proportional to the worker count
// without growing with the case count.
func bufferSize(workers int) int {
	return min(workers*2, maxStreamBuffer)
}

// execute runs the whole suite, emitting one outcome per case. The shared
// resource (if that mode is configured) is acquired at most once and
// released exactly once on every exit path.
func (r *Runner[R]) execute(ctx context.Context, out chan<- types.Outcome, workers int) {
	if len(r.cases) == 0 {
		r.log.Debug("No cases to execute")
		return
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("suite %s", r.suite))
	defer span.End()

	r.progress.StartRun(r.suite, len(r.cases))
	defer r.progress.CompleteRun(r.suite)

	start := time.Now()
	r.log.Info("Starting run",
		"cases", len(r.cases),
		"sharing", r.sharing,
		"parallelism", r.parallelism,
		"workers", workers)

	exec, done, err := r.bindScope(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.runErr = err
		return
	}
	defer func() {
		if err := done(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			r.runErr = err
			return
		}
		r.log.Info("Run complete", "duration", time.Since(start))
	}()

	if workers <= 1 {
		r.runSequential(ctx, out, exec)
	} else {
		r.runParallel(ctx, out, exec, workers)
	}
}

// runSequential executes the cases one at a time in registration order.
func (r *Runner[R]) runSequential(ctx context.Context, out chan<- types.Outcome, exec caseExec[R]) {
	for _, c := range r.cases {
		out <- r.executeOne(ctx, c, exec)
	}
}

// executeOne runs a single case, or marks it cancelled without running it
// when the run context is already done. Every case that reaches here gets
// exactly one outcome and one metrics record.
func (r *Runner[R]) executeOne(ctx context.Context, c registry.Case[R], exec caseExec[R]) types.Outcome {
	var o types.Outcome
	if ctx.Err() != nil {
		o = r.cancelledOutcome(c, "run cancelled")
	} else {
		r.progress.StartCase(c.Name)
		o = exec(ctx, c)
		r.progress.CompleteCase(c.Name, o.Status)
	}

	metrics.RecordOutcome(r.suite, r.runID, c.Name, o.Status)
	return o
}

// cancelledOutcome accounts for a case that never ran.
func (r *Runner[R]) cancelledOutcome(c registry.Case[R], reason string) types.Outcome {
	return types.Outcome{
		Suite:    r.suite,
		Name:     c.Name,
		Index:    c.Index,
		Status:   types.StatusCancelled,
		Reason:   reason,
		Location: c.Location,
	}
}

// runCase executes one case body against the provided resource and
// classifies the result. Panics in the body are contained here and
// classified as failures.
func (r *Runner[R]) runCase(ctx context.Context, c registry.Case[R], res R) types.Outcome {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("case %s", c.Name))
	defer span.End()

	var echo *slog.Logger
	if r.echoCaseLogs {
		echo = r.log.With("case", c.Name)
	}
	caseLog := logging.NewTestLogger(echo)

	r.log.Info("Running case", "name", c.Name, "index", c.Index)
	start := time.Now()

	var bodyErr error
	var catcher panics.Catcher
	catcher.Try(func() {
		bodyErr = c.Body(ctx, res, caseLog)
	})
	duration := time.Since(start)

	if recovered := catcher.Recovered(); recovered != nil {
		r.log.Error("Panic in case", "name", c.Name, "panic", recovered.Value)
		bodyErr = recovered.AsError()
	}

	status, reason, cause := classifyOutcome(bodyErr)
	o := types.Outcome{
		Suite:    r.suite,
		Name:     c.Name,
		Index:    c.Index,
		Status:   status,
		Err:      cause,
		Reason:   reason,
		Duration: duration,
		Timed:    true,
		Location: c.Location,
		Output:   caseLog.Output(),
	}

	switch status {
	case types.StatusFailure:
		span.SetStatus(codes.Error, cause.Error())
		r.log.Error("Case failed", "name", c.Name, "duration", duration, "error", cause)
	case types.StatusCancelled, types.StatusIgnored:
		r.log.Info("Case did not run to completion", "name", c.Name, "status", status, "reason", reason)
	default:
		r.log.Debug("Case passed", "name", c.Name, "duration", duration)
	}

	return o
}

// classifyOutcome maps a case body's return to its outcome status.
// The mapping is the same in every sharing mode and at every parallelism:
// nil is success, a cancel signal is cancelled, an ignore signal is
// ignored, anything else is a failure carrying the error as cause.
func classifyOutcome(err error) (types.Status, string, error) {
	if err == nil {
		return types.StatusSuccess, "", nil
	}
	if cancelErr, ok := types.AsCancelError(err); ok {
		return types.StatusCancelled, cancelErr.Reason, nil
	}
	if ignoreErr, ok := types.AsIgnoreError(err); ok {
		return types.StatusIgnored, ignoreErr.Reason, nil
	}
	return types.StatusFailure, "", err
}
