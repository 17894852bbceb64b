// Package flags defines the CLI flags for the gauntlet driver.
package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "GAUNTLET"

// prefixEnvVars adds the application prefix to an env var name.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Plan = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: prefixEnvVars("PLAN"),
		Usage:   "Path to a run plan file (eg. 'plan.yaml')",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Parallelism = &cli.IntFlag{
		Name:    "parallelism",
		Value:   0,
		EnvVars: prefixEnvVars("PARALLELISM"),
		Usage:   "Maximum number of cases in flight at once (0 = effectively unbounded)",
	}
	Serial = &cli.BoolFlag{
		Name:    "serial",
		Value:   false,
		EnvVars: prefixEnvVars("SERIAL"),
		Usage:   "Run cases one at a time in registration order",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store run logs in",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level (debug, info, warn, error)",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: prefixEnvVars("SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates during long runs",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: prefixEnvVars("PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
	OutputRealtimeLogs = &cli.BoolFlag{
		Name:    "output-realtime-logs",
		Value:   false,
		EnvVars: prefixEnvVars("OUTPUT_REALTIME_LOGS"),
		Usage:   "Forward case output to the engine log as it arrives",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Plan,
	RunInterval,
	Parallelism,
	Serial,
	LogDir,
	LogLevel,
	ShowProgress,
	ProgressInterval,
	OutputRealtimeLogs,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
