package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/types"
)

func statusesByName(t *testing.T, cases []registry.Case[struct{}], parallelism int) map[string]types.Status {
	t.Helper()
	r := newTestRunner(t, cases, parallelism)
	result, err := r.Collect(context.Background(), nil)
	require.NoError(t, err)

	got := make(map[string]types.Status, len(result.Outcomes))
	for _, o := range result.Outcomes {
		got[o.Name] = o.Status
	}
	return got
}

func TestParallelOutcomesMatchSequential(t *testing.T) {
	cases := make([]registry.Case[struct{}], 0, 9)
	for i := 0; i < 9; i++ {
		var body func(context.Context) error
		switch i % 3 {
		case 0:
			body = func(context.Context) error { return nil }
		case 1:
			body = func(context.Context) error { return errors.New("broken") }
		default:
			body = func(context.Context) error { return types.NewIgnoreError("skipped here") }
		}
		cases = append(cases, simpleCase(fmt.Sprintf("case-%d", i), i, body))
	}

	sequential := statusesByName(t, cases, 1)
	parallel := statusesByName(t, cases, 4)

	require.Len(t, parallel, 9)
	assert.Equal(t, sequential, parallel, "parallelism changes emission order, not outcomes")
}

func TestParallelEmitsInCompletionOrder(t *testing.T) {
	slowGate := make(chan struct{})
	cases := []registry.Case[struct{}]{
		simpleCase("slow", 0, func(ctx context.Context) error {
			select {
			case <-slowGate:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		simpleCase("fast", 1, func(context.Context) error { return nil }),
	}

	r := newTestRunner(t, cases, 2)
	out := r.Stream(context.Background())

	first := <-out
	assert.Equal(t, "fast", first.Name, "whichever case finishes first is emitted first")

	close(slowGate)
	second, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "slow", second.Name)

	_, ok = <-out
	assert.False(t, ok, "stream closes after the last outcome")
	assert.NoError(t, r.Err())
}

func TestParallelBoundedConcurrency(t *testing.T) {
	const parallelism = 3

	var running, peak atomic.Int32
	cases := make([]registry.Case[struct{}], 0, 12)
	for i := 0; i < 12; i++ {
		cases = append(cases, simpleCase(fmt.Sprintf("case-%d", i), i, func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	r := newTestRunner(t, cases, parallelism)
	result, err := r.Collect(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 12)

	assert.LessOrEqual(t, peak.Load(), int32(parallelism),
		"never more than the configured workers run at once")
	assert.GreaterOrEqual(t, peak.Load(), int32(2),
		"parallel mode actually overlaps case execution")
	t.Logf("peak concurrency: %d (limit %d)", peak.Load(), parallelism)
}

func TestSequentialNeverOverlaps(t *testing.T) {
	var running, peak atomic.Int32
	cases := make([]registry.Case[struct{}], 0, 5)
	for i := 0; i < 5; i++ {
		cases = append(cases, simpleCase(fmt.Sprintf("case-%d", i), i, func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	r := newTestRunner(t, cases, 1)
	_, err := r.Collect(context.Background(), nil)
	require.NoError(t, err)

	assert.EqualValues(t, 1, peak.Load(), "sequential runs never overlap cases")
}

func TestParallelCancellationAccountsForEveryCase(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 12)
	gate := make(chan struct{})
	cases := make([]registry.Case[struct{}], 0, 12)
	for i := 0; i < 12; i++ {
		cases = append(cases, simpleCase(fmt.Sprintf("case-%d", i), i, func(ctx context.Context) error {
			started <- struct{}{}
			select {
			case <-gate:
				return nil
			case <-ctx.Done():
				return types.NewCancelError("interrupted")
			}
		}))
	}

	r := newTestRunner(t, cases, 2)
	out := r.Stream(ctx)

	// Wait until both workers are inside a case body, then cancel the run.
	<-started
	<-started
	cancel()

	var interrupted, neverRan int
	var total int
	for o := range out {
		total++
		require.Equal(t, types.StatusCancelled, o.Status)
		switch o.Reason {
		case "interrupted":
			interrupted++
		case "run cancelled":
			neverRan++
		default:
			t.Fatalf("unexpected reason %q", o.Reason)
		}
	}
	require.NoError(t, r.Err())

	assert.Equal(t, 12, total, "every case gets exactly one outcome")
	assert.Equal(t, 2, interrupted, "the in-flight cases observe the cancellation themselves")
	assert.Equal(t, 10, neverRan, "queued cases are marked cancelled without running")
}
