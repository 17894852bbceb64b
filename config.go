package gauntlet

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gauntlet-ci/gauntlet/flags"
)

// Config holds the driver configuration
type Config struct {
	Filters            []string      // Case selection patterns (from args or the plan file)
	Parallelism        int           // Maximum cases in flight (0 = effectively unbounded)
	Serial             bool          // Run cases one at a time in registration order
	RunInterval        time.Duration // Interval between runs
	RunOnce            bool          // Indicates if the service should exit after one run
	LogDir             string        // Directory to store run logs
	ShowProgress       bool          // Whether to log periodic progress updates during runs
	ProgressInterval   time.Duration // Interval between progress updates when ShowProgress is set
	OutputRealtimeLogs bool          // If enabled, case output is forwarded to the engine log in realtime
	Log                *slog.Logger
}

// NewConfig creates a new Config from cli context. Values given on the
// command line win over the plan file; positional args become filters and
// are appended to the plan's.
func NewConfig(ctx *cli.Context, log *slog.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	var plan Plan
	if planFile := ctx.String(flags.Plan.Name); planFile != "" {
		loaded, err := LoadPlan(planFile)
		if err != nil {
			return nil, err
		}
		plan = *loaded
		log.Debug("Loaded run plan", "path", planFile)
	}

	filters := append(plan.Filters, ctx.Args().Slice()...)

	parallelism := plan.Parallelism
	if ctx.IsSet(flags.Parallelism.Name) {
		parallelism = ctx.Int(flags.Parallelism.Name)
	}
	if parallelism < 0 {
		return nil, fmt.Errorf("parallelism must not be negative, got %d", parallelism)
	}
	if parallelism == 0 {
		parallelism = DefaultMaxParallelism
	}

	serial := plan.Serial
	if ctx.IsSet(flags.Serial.Name) {
		serial = ctx.Bool(flags.Serial.Name)
	}
	if serial {
		parallelism = 1
	}

	runInterval := plan.RunInterval
	if ctx.IsSet(flags.RunInterval.Name) {
		runInterval = ctx.Duration(flags.RunInterval.Name)
	}
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval must not be negative, got %s", runInterval)
	}
	runOnce := runInterval == 0

	logDir := plan.LogDir
	if ctx.IsSet(flags.LogDir.Name) || logDir == "" {
		logDir = ctx.String(flags.LogDir.Name)
	}
	logDir, err := filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	return &Config{
		Filters:            filters,
		Parallelism:        parallelism,
		Serial:             serial,
		RunInterval:        runInterval,
		RunOnce:            runOnce,
		LogDir:             logDir,
		ShowProgress:       ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval:   ctx.Duration(flags.ProgressInterval.Name),
		OutputRealtimeLogs: ctx.Bool(flags.OutputRealtimeLogs.Name),
		Log:                log,
	}, nil
}
