package gauntlet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gauntlet-ci/gauntlet/logging"
	"github.com/gauntlet-ci/gauntlet/metrics"
	"github.com/gauntlet-ci/gauntlet/reporting"
	"github.com/gauntlet-ci/gauntlet/runner"
	"github.com/gauntlet-ci/gauntlet/types"
)

// Runnable is the non-generic handle the service holds on a Suite.
type Runnable interface {
	Name() string
	Run(ctx context.Context, args []string, report func(types.Outcome)) (*runner.RunResult, error)
}

// Gauntlet drives one or more suites as a service: it runs them once or on
// an interval, streams outcomes to the console and log sinks, prints the
// results table and records run metrics.
type Gauntlet struct {
	ctx       context.Context
	config    *Config
	version   string
	suites    []Runnable
	scheduler RunScheduler
	formatter ResultFormatter
	reporter  reporting.Reporter

	mu      sync.Mutex
	results []*runner.RunResult

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the service around the given suites.
func New(ctx context.Context, config *Config, version string, suites []Runnable, shutdownCallback func(error)) (*Gauntlet, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(suites) == 0 {
		return nil, errors.New("at least one suite is required")
	}
	if config.Log == nil {
		config.Log = slog.Default()
	}

	config.Log.Debug("Creating gauntlet with config",
		"suites", len(suites),
		"filters", config.Filters,
		"parallelism", config.Parallelism,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"logDir", config.LogDir)

	g := &Gauntlet{
		ctx:              ctx,
		config:           config,
		version:          version,
		suites:           suites,
		scheduler:        NewIntervalScheduler(config.RunInterval, config.RunOnce, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log, nil),
		reporter:         reporting.NewConsoleReporter(nil, true),
		shutdownCallback: shutdownCallback,
	}
	g.scheduler.RegisterCallback(g.runSuites)
	return g, nil
}

// Start runs the suites once immediately and, unless in run-once mode,
// keeps re-running them at the configured interval.
func (g *Gauntlet) Start(ctx context.Context) error {
	g.ctx = ctx

	if g.config.RunOnce {
		g.config.Log.Info("Starting gauntlet in run-once mode")
	} else {
		g.config.Log.Info("Starting gauntlet in continuous mode", "interval", g.config.RunInterval)
	}

	if err := g.scheduler.Start(ctx); err != nil {
		// Run-level errors are runtime errors (exit code 2), not failures.
		g.config.Log.Error("Runtime error running suites", "error", err)
		if IsRuntimeError(err) {
			return err
		}
		return NewRuntimeError(err)
	}

	if g.config.RunOnce {
		g.config.Log.Info("Run completed, exiting (run-once mode)")

		if failed, total := g.failureCount(); failed > 0 {
			g.config.Log.Warn("Run-once execution completed with failures", "failed", failed, "total", total)
			// Exit code 1 for case failures (assertions failed)
			return NewTestFailureError(fmt.Sprintf("%d of %d cases failed", failed, total))
		}

		// Only called when we're in run-once mode and everything passed
		go func() {
			g.shutdownCallback(nil)
		}()
		return nil
	}

	g.config.Log.Debug("gauntlet started successfully")
	return nil
}

// runSuites executes every suite once and processes the results.
func (g *Gauntlet) runSuites() error {
	g.config.Log.Info("Running all suites...")
	runID := uuid.New().String()

	var fileLogger *logging.FileLogger
	if g.config.LogDir != "" {
		fl, err := logging.NewFileLogger(g.config.LogDir, runID)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		fileLogger = fl
	}

	report := func(o types.Outcome) {
		g.reporter.Report(o)
		if fileLogger != nil {
			if err := fileLogger.Consume(&o, runID); err != nil {
				g.config.Log.Error("Error writing outcome to log sinks", "error", err)
				metrics.RecordErrorDetails("log sink error", err)
			}
		}
	}

	results := make([]*runner.RunResult, 0, len(g.suites))
	for _, suite := range g.suites {
		result, err := suite.Run(g.ctx, g.config.Filters, report)
		if err != nil {
			g.config.Log.Error("Runtime error running suite", "suite", suite.Name(), "error", err)
			return err
		}

		metrics.RecordRun(suite.Name(), result.RunID, string(result.Status),
			result.Stats.Total, result.Stats.Passed, result.Stats.Failed, result.Duration)
		results = append(results, result)
	}

	g.mu.Lock()
	g.results = results
	g.mu.Unlock()

	if err := g.formatter.FormatResults(results); err != nil {
		g.config.Log.Error("Error formatting results", "error", err)
	}

	if fileLogger != nil {
		summaries := reporting.NewSummaryFormatter(true, true)
		var sb strings.Builder
		for _, result := range results {
			sb.WriteString(summaries.Format(result))
			sb.WriteString("\n")
		}
		if err := fileLogger.LogSummary(sb.String(), runID); err != nil {
			g.config.Log.Error("Error writing run summary", "error", err)
		}
		if err := fileLogger.Complete(runID); err != nil {
			g.config.Log.Error("Error completing log sinks", "error", err)
		}
		g.config.Log.Info("Run logs written", "dir", fileLogger.GetBaseDir())
	}

	failed, total := g.failureCount()
	g.config.Log.Info("Run completed", "run_id", runID, "cases", total, "failed", failed)
	return nil
}

// failureCount reports the failed and total case counts of the last run.
func (g *Gauntlet) failureCount() (failed, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, result := range g.results {
		failed += result.Stats.Failed
		total += result.Stats.Total
	}
	return failed, total
}

// Results returns the results of the last completed run.
func (g *Gauntlet) Results() []*runner.RunResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*runner.RunResult, len(g.results))
	copy(out, g.results)
	return out
}

// Stop stops the gauntlet service.
func (g *Gauntlet) Stop(ctx context.Context) error {
	g.config.Log.Info("Stopping gauntlet")

	if g.scheduler.Stopped() {
		g.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	if err := g.scheduler.Stop(); err != nil {
		return err
	}

	g.config.Log.Info("gauntlet stopped successfully")
	return nil
}

// Stopped returns true if the gauntlet service is stopped.
func (g *Gauntlet) Stopped() bool {
	return g.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving on.
func (g *Gauntlet) WaitForShutdown(ctx context.Context) error {
	return g.scheduler.WaitForShutdown(ctx)
}
