package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gauntlet-ci/gauntlet"
	"github.com/gauntlet-ci/gauntlet/logging"
	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/runner"
)

// smokeSuites builds the suites the binary runs: a pure suite plus a
// shared-scratch and a per-case-scratch suite, so one invocation exercises
// both sharing modes end to end.
func smokeSuites(cfg *gauntlet.Config) ([]gauntlet.Runnable, error) {
	opts := []gauntlet.Option{
		gauntlet.WithLogger(cfg.Log),
		gauntlet.WithParallelism(cfg.Parallelism),
	}
	if cfg.OutputRealtimeLogs {
		opts = append(opts, gauntlet.WithEchoCaseLogs())
	}
	if cfg.ShowProgress {
		opts = append(opts, gauntlet.WithProgress(
			runner.NewConsoleProgressIndicator(cfg.Log, cfg.ProgressInterval)))
	}

	pure, err := pureSuite(opts)
	if err != nil {
		return nil, err
	}
	shared, err := sharedScratchSuite(opts)
	if err != nil {
		return nil, err
	}
	perCase, err := perCaseScratchSuite(opts)
	if err != nil {
		return nil, err
	}

	return []gauntlet.Runnable{pure, shared, perCase}, nil
}

func pureSuite(opts []gauntlet.Option) (*gauntlet.Suite[struct{}], error) {
	suite, err := gauntlet.NewPureSuite("smoke", opts...)
	if err != nil {
		return nil, err
	}

	gauntlet.Pure(suite, "Arithmetic", func(ctx context.Context) error {
		if 2+2 != 4 {
			return errors.New("arithmetic is broken")
		}
		return nil
	})

	gauntlet.Pure(suite, "ContextAlive", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run context already done: %w", err)
		}
		return nil
	})

	gauntlet.Pure(suite, "Hostname", func(ctx context.Context) error {
		if _, err := os.Hostname(); err != nil {
			return gauntlet.Ignore("hostname not available: " + err.Error())
		}
		return nil
	})

	return suite, nil
}

// scratchDir provisions a temporary directory and removes it on release.
func scratchDir() registry.Resource[string] {
	return registry.ResourceFuncs[string]{
		AcquireFn: func(ctx context.Context) (string, error) {
			return os.MkdirTemp("", "gauntlet-scratch-")
		},
		ReleaseFn: func(ctx context.Context, dir string) error {
			return os.RemoveAll(dir)
		},
	}
}

func sharedScratchSuite(opts []gauntlet.Option) (*gauntlet.Suite[string], error) {
	suite, err := gauntlet.NewSuite("shared-scratch", scratchDir(), gauntlet.SharingShared, opts...)
	if err != nil {
		return nil, err
	}

	suite.Register("WriteMarker", func(ctx context.Context, dir string, log *logging.TestLogger) error {
		log.Logf("writing marker in %s", dir)
		return os.WriteFile(filepath.Join(dir, "marker"), []byte("ok"), 0644)
	})

	suite.RegisterFunc("DirectoryExists", func(ctx context.Context, dir string) error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	})

	return suite, nil
}

func perCaseScratchSuite(opts []gauntlet.Option) (*gauntlet.Suite[string], error) {
	suite, err := gauntlet.NewSuite("scratch", scratchDir(), gauntlet.SharingPerTest, opts...)
	if err != nil {
		return nil, err
	}

	// Each case owns a fresh directory, so both can use the same filename.
	for _, name := range []string{"WriteAndRead", "WriteAndReadAgain"} {
		name := name // per-iteration copy for Go <1.22 loop semantics
		suite.Register(name, func(ctx context.Context, dir string, log *logging.TestLogger) error {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return err
			}
			if len(entries) != 0 {
				return fmt.Errorf("scratch directory not fresh: %d entries", len(entries))
			}

			path := filepath.Join(dir, "data")
			if err := os.WriteFile(path, []byte(name), 0644); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if string(data) != name {
				return fmt.Errorf("read %q, want %q", data, name)
			}
			log.Logf("round-tripped %d bytes", len(data))
			return nil
		})
	}

	return suite, nil
}
