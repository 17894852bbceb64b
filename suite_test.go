package gauntlet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-ci/gauntlet/logging"
	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingResource hands each acquisition a fresh zeroed counter and
// tracks lifecycle calls.
type countingResource struct {
	mu       sync.Mutex
	acquires int
	releases int
}

func (c *countingResource) Acquire(ctx context.Context) (*int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquires++
	return new(int), nil
}

func (c *countingResource) Release(ctx context.Context, res *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	return nil
}

func newPure(t *testing.T, opts ...Option) *Suite[struct{}] {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	s, err := NewPureSuite("demo", opts...)
	require.NoError(t, err)
	return s
}

func outcomeNames(outcomes []types.Outcome) []string {
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.Name)
	}
	return names
}

func TestNewSuiteValidation(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		_, err := NewSuite[struct{}]("", registry.NoResource{}, SharingShared)
		assert.Error(t, err)
	})

	t.Run("missing resource", func(t *testing.T) {
		_, err := NewSuite[struct{}]("demo", nil, SharingShared)
		assert.Error(t, err)
	})

	t.Run("bad sharing mode", func(t *testing.T) {
		_, err := NewSuite[struct{}]("demo", registry.NoResource{}, "global")
		assert.Error(t, err)
	})
}

func TestSequentialPreservesRegistrationOrder(t *testing.T) {
	s := newPure(t, WithParallelism(1))
	want := []string{"first", "second", "third", "fourth"}
	for _, name := range want {
		Pure(s, name, func(context.Context) error { return nil })
	}

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, want, outcomeNames(result.Outcomes))
}

func TestParallelEmitsExactlyTheFilteredSet(t *testing.T) {
	s := newPure(t, WithParallelism(4))
	var want []string
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("case-%d", i)
		want = append(want, name)
		Pure(s, name, func(context.Context) error { return nil })
	}

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)

	got := outcomeNames(result.Outcomes)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got, "parallel mode may reorder but never drops or invents outcomes")
}

func TestDuplicateNamesBothRun(t *testing.T) {
	s := newPure(t, WithParallelism(1))
	Pure(s, "same", func(context.Context) error { return nil })
	Pure(s, "same", func(context.Context) error { return errors.New("second occurrence") })

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, types.StatusSuccess, result.Outcomes[0].Status)
	assert.Equal(t, types.StatusFailure, result.Outcomes[1].Status)
}

func TestRegisterAfterFirstRunPanics(t *testing.T) {
	s := newPure(t)
	Pure(s, "early", func(context.Context) error { return nil })

	_, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)

	defer func() {
		recovered := recover()
		require.NotNil(t, recovered, "registering after the first run must panic")
		err, ok := recovered.(error)
		require.True(t, ok)
		var frozen *registry.FrozenError
		assert.ErrorAs(t, err, &frozen)
		assert.Equal(t, "demo", frozen.Suite)
	}()
	Pure(s, "late", func(context.Context) error { return nil })
}

func TestRunIsReinvocable(t *testing.T) {
	var runs int
	s := newPure(t)
	Pure(s, "counted", func(context.Context) error {
		runs++
		return nil
	})

	for i := 0; i < 3; i++ {
		result, err := s.Run(context.Background(), nil, nil)
		require.NoError(t, err)
		require.Len(t, result.Outcomes, 1)
	}
	assert.Equal(t, 3, runs, "each Run re-executes the frozen snapshot")
}

func TestSpecStreamsOutcomes(t *testing.T) {
	s := newPure(t, WithParallelism(1))
	Pure(s, "one", func(context.Context) error { return nil })
	Pure(s, "two", func(context.Context) error { return errors.New("boom") })

	stream, err := s.Spec(context.Background(), nil)
	require.NoError(t, err)

	var outcomes []types.Outcome
	for o := range stream {
		outcomes = append(outcomes, o)
	}
	require.Len(t, outcomes, 2)
	assert.Equal(t, []string{"one", "two"}, outcomeNames(outcomes))
	assert.Equal(t, types.StatusFailure, outcomes[1].Status)
}

func TestFilterSelectsByNameAndQualifiedName(t *testing.T) {
	register := func(s *Suite[struct{}]) {
		for _, name := range []string{"alpha", "beta", "gamma"} {
			Pure(s, name, func(context.Context) error { return nil })
		}
	}

	t.Run("bare name regex", func(t *testing.T) {
		s := newPure(t)
		register(s)
		result, err := s.Run(context.Background(), []string{"^alpha$"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha"}, outcomeNames(result.Outcomes))
	})

	t.Run("suite-qualified regex", func(t *testing.T) {
		s := newPure(t)
		register(s)
		result, err := s.Run(context.Background(), []string{"^demo/beta$"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"beta"}, outcomeNames(result.Outcomes))
	})

	t.Run("exclusion", func(t *testing.T) {
		s := newPure(t, WithParallelism(1))
		register(s)
		result, err := s.Run(context.Background(), []string{"!beta"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "gamma"}, outcomeNames(result.Outcomes))
	})

	t.Run("flag-like args are ignored", func(t *testing.T) {
		s := newPure(t)
		register(s)
		result, err := s.Run(context.Background(), []string{"-v", "--parallel=4"}, nil)
		require.NoError(t, err)
		assert.Len(t, result.Outcomes, 3)
	})
}

func TestCancelAndIgnoreClassification(t *testing.T) {
	s := newPure(t, WithParallelism(1))
	Pure(s, "cancels", func(context.Context) error { return Cancel("backend down") })
	Pure(s, "ignores", func(context.Context) error { return Ignore("not applicable") })
	Pure(s, "fails", func(context.Context) error { return errors.New("assertion failed") })
	Pure(s, "passes", func(context.Context) error { return nil })

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 4)

	assert.Equal(t, types.StatusCancelled, result.Outcomes[0].Status)
	assert.Equal(t, "backend down", result.Outcomes[0].Reason)
	assert.Equal(t, types.StatusIgnored, result.Outcomes[1].Status)
	assert.Equal(t, "not applicable", result.Outcomes[1].Reason)
	assert.Equal(t, types.StatusFailure, result.Outcomes[2].Status)
	assert.Equal(t, types.StatusSuccess, result.Outcomes[3].Status)
}

func TestOneFailureDoesNotAffectSiblings(t *testing.T) {
	for _, parallelism := range []int{1, 3} {
		t.Run(fmt.Sprintf("parallelism %d", parallelism), func(t *testing.T) {
			s := newPure(t, WithParallelism(parallelism))
			for i := 0; i < 5; i++ {
				i := i
				Pure(s, fmt.Sprintf("case-%d", i), func(context.Context) error {
					if i == 2 {
						return errors.New("deliberate failure")
					}
					return nil
				})
			}

			result, err := s.Run(context.Background(), nil, nil)
			require.NoError(t, err)
			require.Len(t, result.Outcomes, 5)

			for _, o := range result.Outcomes {
				if o.Name == "case-2" {
					assert.Equal(t, types.StatusFailure, o.Status)
				} else {
					assert.Equal(t, types.StatusSuccess, o.Status, o.Name)
				}
			}
		})
	}
}

func TestSharedResourceAdvancesAcrossCases(t *testing.T) {
	res := &countingResource{}
	s, err := NewSuite[*int]("counter", res, SharingShared,
		WithLogger(discardLogger()), WithParallelism(1))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		i := i
		s.RegisterFunc(fmt.Sprintf("step-%d", i), func(ctx context.Context, v *int) error {
			if *v != i {
				return fmt.Errorf("saw %d, want %d", *v, i)
			}
			*v++
			return nil
		})
	}

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	for _, o := range result.Outcomes {
		assert.Equal(t, types.StatusSuccess, o.Status, o.Name)
	}
	assert.Equal(t, 1, res.acquires, "shared mode acquires once per run")
	assert.Equal(t, 1, res.releases)
}

func TestPerTestResourceStartsFresh(t *testing.T) {
	res := &countingResource{}
	s, err := NewSuite[*int]("counter", res, SharingPerTest,
		WithLogger(discardLogger()), WithParallelism(1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s.RegisterFunc(fmt.Sprintf("fresh-%d", i), func(ctx context.Context, v *int) error {
			if *v != 0 {
				return fmt.Errorf("resource not fresh: saw %d", *v)
			}
			*v++
			return nil
		})
	}

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	for _, o := range result.Outcomes {
		assert.Equal(t, types.StatusSuccess, o.Status, o.Name)
	}
	assert.Equal(t, 3, res.acquires, "per-test mode acquires once per case")
	assert.Equal(t, 3, res.releases)
}

func TestEmptyFilteredSetSkipsSharedAcquisition(t *testing.T) {
	res := &countingResource{}
	s, err := NewSuite[*int]("counter", res, SharingShared, WithLogger(discardLogger()))
	require.NoError(t, err)
	s.RegisterFunc("unmatched", func(context.Context, *int) error { return nil })

	result, err := s.Run(context.Background(), []string{"^nothing-matches-this$"}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Zero(t, res.acquires, "a fully filtered-out suite must not touch the resource")
	assert.Zero(t, res.releases)
}

func TestReporterCalledExactlyOncePerOutcome(t *testing.T) {
	s := newPure(t, WithParallelism(2))
	for i := 0; i < 6; i++ {
		Pure(s, fmt.Sprintf("case-%d", i), func(context.Context) error { return nil })
	}

	calls := make(map[string]int)
	result, err := s.Run(context.Background(), nil, func(o types.Outcome) {
		calls[o.Name]++
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 6)

	for name, n := range calls {
		assert.Equal(t, 1, n, "reporter called more than once for %s", name)
	}
	assert.Len(t, calls, 6)
}

func TestErrorAdapterAppliedToRunLevelErrors(t *testing.T) {
	acquireErr := errors.New("no cluster")
	res := registry.ResourceFuncs[*int]{
		AcquireFn: func(context.Context) (*int, error) { return nil, acquireErr },
	}

	adapted := errors.New("adapted")
	s, err := NewSuite[*int]("counter", res, SharingShared,
		WithLogger(discardLogger()),
		WithErrorAdapter(func(err error) error {
			return fmt.Errorf("%w: %w", adapted, err)
		}))
	require.NoError(t, err)
	s.RegisterFunc("needs-resource", func(context.Context, *int) error { return nil })

	_, err = s.Run(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapted)
	assert.ErrorIs(t, err, acquireErr)
}

func TestRegistrationCapturesLocation(t *testing.T) {
	s := newPure(t)
	Pure(s, "located", func(context.Context) error { return nil })

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)

	loc := result.Outcomes[0].Location
	require.NotNil(t, loc)
	assert.True(t, strings.HasSuffix(loc.File, "suite_test.go"), "got %s", loc.File)
	assert.Greater(t, loc.Line, 0)
}

func TestCaseOutputIsCaptured(t *testing.T) {
	s := newPure(t)
	s.Register("logs", func(ctx context.Context, _ struct{}, log *logging.TestLogger) error {
		log.Logf("hello %s", "world")
		return nil
	})

	result, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes[0].Output, "hello world")
}
