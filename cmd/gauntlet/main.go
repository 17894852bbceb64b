package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gauntlet-ci/gauntlet"
	"github.com/gauntlet-ci/gauntlet/exitcodes"
	"github.com/gauntlet-ci/gauntlet/flags"
	"github.com/gauntlet-ci/gauntlet/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "gauntlet"
	app.Usage = "Resource-scoped test execution service"
	app.Description = "gauntlet runs registered suites under a bounded-parallelism scheduler"
	app.ArgsUsage = "[filter regex ...]"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitCodeForError(err)))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the healthz/metrics server
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "message", err)
		os.Exit(exitCodeForError(err))
	}
}

// exitCodeForError maps the error taxonomy to process exit codes: runtime
// errors exit with RuntimeErr, test failures and anything unspecified with
// TestFailure.
func exitCodeForError(err error) int {
	if gauntlet.IsRuntimeError(err) {
		return exitcodes.RuntimeErr
	}
	return exitcodes.TestFailure
}

func run(cliCtx *cli.Context) error {
	log := newLogger(cliCtx.String(flags.LogLevel.Name))
	slog.SetDefault(log)

	cfg, err := gauntlet.NewConfig(cliCtx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return gauntlet.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	log.Debug("Config",
		"filters", cfg.Filters,
		"parallelism", cfg.Parallelism,
		"runInterval", cfg.RunInterval,
		"logDir", cfg.LogDir)

	suites, err := smokeSuites(cfg)
	if err != nil {
		return gauntlet.NewRuntimeError(fmt.Errorf("failed to build suites: %w", err))
	}

	ctx, cancel := context.WithCancelCause(cliCtx.Context)
	defer cancel(nil)

	g, err := gauntlet.New(ctx, cfg, Version, suites, cancel)
	if err != nil {
		return gauntlet.NewRuntimeError(fmt.Errorf("failed to create gauntlet: %w", err))
	}

	if err := g.Start(ctx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	// Continuous mode: block until interrupted, then drain.
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := g.Stop(stopCtx); err != nil {
		log.Error("Error stopping gauntlet", "error", err)
	}
	return g.WaitForShutdown(stopCtx)
}

// newLogger builds the engine logger at the requested level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
