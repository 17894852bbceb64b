// Package gauntlet is a resource-scoped test-execution engine. Callers
// register named cases against a Suite, attach a resource that is either
// shared across all cases or freshly provisioned per case, and run the
// registered cases under a bounded-parallelism scheduler that streams one
// Outcome per case back to a caller-supplied reporter.
package gauntlet

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/gauntlet-ci/gauntlet/logging"
	"github.com/gauntlet-ci/gauntlet/metrics"
	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/runner"
	"github.com/gauntlet-ci/gauntlet/types"
)

// Sharing modes, re-exported so suite authors only import this package.
const (
	SharingShared  = runner.SharingShared
	SharingPerTest = runner.SharingPerTest
)

// DefaultMaxParallelism is the worker bound used when no explicit
// parallelism is configured.
const DefaultMaxParallelism = runner.DefaultMaxParallelism

// Cancel builds the error a case body returns to end up as StatusCancelled
// instead of a failure.
func Cancel(reason string) error {
	return types.NewCancelError(reason)
}

// Ignore builds the error a case body returns to end up as StatusIgnored
// instead of a failure.
func Ignore(reason string) error {
	return types.NewIgnoreError(reason)
}

// Option configures a Suite at construction time.
type Option func(*suiteOptions)

type suiteOptions struct {
	log              *slog.Logger
	parallelism      int
	adaptErr         func(error) error
	progress         runner.ProgressIndicator
	echoCaseLogs     bool
	recordRunMetrics bool
}

// WithLogger sets the engine logger. The default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(o *suiteOptions) { o.log = log }
}

// WithParallelism bounds the number of cases in flight at once. Values
// below 2 run the suite sequentially in registration order; the default is
// DefaultMaxParallelism, which leaves the bound to the ambient runtime.
func WithParallelism(n int) Option {
	return func(o *suiteOptions) { o.parallelism = n }
}

// WithErrorAdapter installs a function applied to any run-level error
// before Run returns it, so embedders can translate engine errors into
// their own vocabulary. Per-case outcomes are never adapted.
func WithErrorAdapter(adapt func(error) error) Option {
	return func(o *suiteOptions) { o.adaptErr = adapt }
}

// WithProgress installs a progress indicator receiving run lifecycle events.
func WithProgress(p runner.ProgressIndicator) Option {
	return func(o *suiteOptions) { o.progress = p }
}

// WithEchoCaseLogs forwards captured case output to the engine logger as
// it arrives, instead of only attaching it to the Outcome.
func WithEchoCaseLogs() Option {
	return func(o *suiteOptions) { o.echoCaseLogs = true }
}

// WithRunMetrics records run-level metrics (per-run counters and gauges)
// at the end of every Run. Per-outcome metrics are always recorded.
func WithRunMetrics() Option {
	return func(o *suiteOptions) { o.recordRunMetrics = true }
}

// Suite is the registration surface for one named group of cases sharing
// a resource contract. Cases accumulate until the first Spec or Run call
// freezes the suite; registering afterwards panics with
// *registry.FrozenError. Subsequent Spec/Run calls re-execute the frozen
// case set.
type Suite[R any] struct {
	name     string
	registry *registry.Registry[R]
	resource registry.Resource[R]
	sharing  runner.Sharing
	opts     suiteOptions
}

// NewSuite creates a suite whose cases run against the given resource in
// the given sharing mode.
func NewSuite[R any](name string, resource registry.Resource[R], sharing runner.Sharing, opts ...Option) (*Suite[R], error) {
	if name == "" {
		return nil, errors.New("suite name is required")
	}
	if resource == nil {
		return nil, errors.New("resource is required")
	}
	if !sharing.Valid() {
		return nil, errors.New("unknown sharing mode: " + string(sharing))
	}

	options := suiteOptions{
		parallelism: DefaultMaxParallelism,
		adaptErr:    func(err error) error { return err },
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.log == nil {
		options.log = slog.Default()
	}

	return &Suite[R]{
		name:     name,
		registry: registry.NewRegistry[R](name, options.log),
		resource: resource,
		sharing:  sharing,
		opts:     options,
	}, nil
}

// NewPureSuite creates a suite for cases that need no resource.
func NewPureSuite(name string, opts ...Option) (*Suite[struct{}], error) {
	return NewSuite[struct{}](name, registry.NoResource{}, runner.SharingShared, opts...)
}

// Name returns the suite name.
func (s *Suite[R]) Name() string {
	return s.name
}

// Len returns the number of registered cases.
func (s *Suite[R]) Len() int {
	return s.registry.Len()
}

// Register adds a case taking the suite resource and a case logger.
// Registration order is preserved and duplicate names are allowed.
func (s *Suite[R]) Register(name string, body registry.Body[R]) {
	s.registry.Register(name, body, callerLocation(1))
}

// RegisterFunc adds a case that does not use the case logger.
func (s *Suite[R]) RegisterFunc(name string, fn func(ctx context.Context, res R) error) {
	s.registry.Register(name, func(ctx context.Context, res R, _ *logging.TestLogger) error {
		return fn(ctx, res)
	}, callerLocation(1))
}

// Pure adds a case that needs neither the resource nor the case logger to
// a resource-free suite.
func Pure(s *Suite[struct{}], name string, fn func(ctx context.Context) error) {
	s.registry.Register(name, func(ctx context.Context, _ struct{}, _ *logging.TestLogger) error {
		return fn(ctx)
	}, callerLocation(1))
}

// callerLocation captures the registration site for failure reporting.
func callerLocation(skip int) *types.Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return nil
	}
	return &types.Location{File: file, Line: line}
}

// newRun freezes the suite (on the first call), applies the name filter
// built from args and prepares a runner for one execution.
func (s *Suite[R]) newRun(args []string) (*runner.Runner[R], error) {
	cases := s.registry.Snapshot()
	filter := registry.NewFilter(s.name, args, s.opts.log)
	filtered := registry.ApplyFilter(cases, filter)

	s.opts.log.Debug("Prepared run",
		"suite", s.name,
		"registered", len(cases),
		"filtered", len(filtered))

	return runner.NewRunner(runner.Config[R]{
		Suite:        s.name,
		Cases:        filtered,
		Resource:     s.resource,
		Sharing:      s.sharing,
		Parallelism:  s.opts.parallelism,
		Log:          s.opts.log,
		Progress:     s.opts.progress,
		EchoCaseLogs: s.opts.echoCaseLogs,
	})
}

// Spec freezes the suite on first call and returns the outcome stream for
// one execution under the filter derived from args. The stream is finite
// and consumed exactly once; run-level errors (such as a failed shared
// acquisition) are only visible through Run, which drains the stream and
// reports them.
func (s *Suite[R]) Spec(ctx context.Context, args []string) (<-chan types.Outcome, error) {
	run, err := s.newRun(args)
	if err != nil {
		return nil, s.opts.adaptErr(err)
	}
	return run.Stream(ctx), nil
}

// Run executes the suite once, invoking report (when non-nil) exactly once
// per outcome in emission order, and drains the stream fully before
// returning. Run-level errors pass through the configured error adapter;
// per-case conditions never surface here, they are folded into outcomes.
func (s *Suite[R]) Run(ctx context.Context, args []string, report func(types.Outcome)) (*runner.RunResult, error) {
	run, err := s.newRun(args)
	if err != nil {
		return nil, s.opts.adaptErr(err)
	}

	result, err := run.Collect(ctx, report)
	if s.opts.recordRunMetrics && result != nil {
		metrics.RecordRun(s.name, result.RunID, string(result.Status),
			result.Stats.Total, result.Stats.Passed, result.Stats.Failed, result.Duration)
	}
	if err != nil {
		return result, s.opts.adaptErr(err)
	}
	return result, nil
}
