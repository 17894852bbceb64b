package gauntlet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-ci/gauntlet/registry"
)

func serviceConfig(logDir string) *Config {
	return &Config{
		Parallelism: 2,
		RunOnce:     true,
		LogDir:      logDir,
		Log:         discardLogger(),
	}
}

func passingSuite(t *testing.T, name string) Runnable {
	t.Helper()
	s, err := NewPureSuite(name, WithLogger(discardLogger()))
	require.NoError(t, err)
	Pure(s, "passes", func(context.Context) error { return nil })
	return s
}

func failingSuite(t *testing.T, name string) Runnable {
	t.Helper()
	s, err := NewPureSuite(name, WithLogger(discardLogger()))
	require.NoError(t, err)
	Pure(s, "fails", func(context.Context) error { return errors.New("deliberate") })
	return s
}

func TestNewGauntletValidation(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := New(context.Background(), nil, "test", []Runnable{passingSuite(t, "s")}, func(error) {})
		assert.Error(t, err)
	})

	t.Run("no suites", func(t *testing.T) {
		_, err := New(context.Background(), serviceConfig(""), "test", nil, func(error) {})
		assert.Error(t, err)
	})
}

func TestRunOnceSuccessTriggersShutdown(t *testing.T) {
	shutdown := make(chan error, 1)
	g, err := New(context.Background(), serviceConfig(""), "test",
		[]Runnable{passingSuite(t, "alpha"), passingSuite(t, "beta")},
		func(err error) { shutdown <- err })
	require.NoError(t, err)

	require.NoError(t, g.Start(context.Background()))

	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback was not invoked")
	}

	results := g.Results()
	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.Passed())
	}
}

func TestRunOnceFailureReturnsTestFailureError(t *testing.T) {
	g, err := New(context.Background(), serviceConfig(""), "test",
		[]Runnable{passingSuite(t, "ok"), failingSuite(t, "broken")},
		func(error) { t.Error("shutdown callback must not fire on failure") })
	require.NoError(t, err)

	err = g.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
}

func TestRuntimeErrorFromSharedAcquire(t *testing.T) {
	acquireErr := errors.New("no cluster")
	res := registry.ResourceFuncs[int]{
		AcquireFn: func(context.Context) (int, error) { return 0, acquireErr },
	}
	s, err := NewSuite[int]("needs-cluster", res, SharingShared, WithLogger(discardLogger()))
	require.NoError(t, err)
	s.RegisterFunc("never-runs", func(context.Context, int) error { return nil })

	g, err := New(context.Background(), serviceConfig(""), "test",
		[]Runnable{s}, func(error) {})
	require.NoError(t, err)

	err = g.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.ErrorIs(t, err, acquireErr)
}

func TestRunLogsWritten(t *testing.T) {
	logDir := t.TempDir()
	g, err := New(context.Background(), serviceConfig(logDir), "test",
		[]Runnable{passingSuite(t, "logged"), failingSuite(t, "broken")}, func(error) {})
	require.NoError(t, err)

	err = g.Start(context.Background())
	require.Error(t, err, "the failing suite makes this a test failure")
	assert.True(t, IsTestFailureError(err))

	runDirs, err := filepath.Glob(filepath.Join(logDir, "run-*"))
	require.NoError(t, err)
	require.Len(t, runDirs, 1)

	allLogs, err := os.ReadFile(filepath.Join(runDirs[0], "all.log"))
	require.NoError(t, err)
	assert.Contains(t, string(allLogs), "logged/passes")
	assert.Contains(t, string(allLogs), "broken/fails")

	summary, err := os.ReadFile(filepath.Join(runDirs[0], "summary.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, summary)

	outcomes, err := os.ReadFile(filepath.Join(runDirs[0], "outcomes.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(outcomes), `"status":"failure"`)

	failedFiles, err := filepath.Glob(filepath.Join(runDirs[0], "failed", "*.log"))
	require.NoError(t, err)
	assert.Len(t, failedFiles, 1, "one file per failed case")
}

func TestContinuousModeRunsRepeatedly(t *testing.T) {
	var runs atomic.Int32
	s, err := NewPureSuite("ticker", WithLogger(discardLogger()))
	require.NoError(t, err)
	Pure(s, "ticks", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	cfg := serviceConfig("")
	cfg.RunOnce = false
	cfg.RunInterval = 10 * time.Millisecond

	g, err := New(context.Background(), cfg, "test", []Runnable{s}, func(error) {})
	require.NoError(t, err)

	require.NoError(t, g.Start(context.Background()))
	assert.False(t, g.Stopped())

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "continuous mode keeps re-running the suites")

	require.NoError(t, g.Stop(context.Background()))
	assert.True(t, g.Stopped())
	require.NoError(t, g.WaitForShutdown(context.Background()))

	require.NoError(t, g.Stop(context.Background()), "stopping twice is a no-op")
}
