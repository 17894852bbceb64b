package runner

import (
	"context"
	"sync"

	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/types"
)

// runParallel executes the cases on a bounded worker pool and forwards
// outcomes in completion order. Between 1 and workers cases are in flight
// at any moment; a failing case never affects its siblings.
//
// Workers drain the work channel to the end even after cancellation so
// that every case is accounted for: cases reached after the run context
// is done are emitted as cancelled without running.
func (r *Runner[R]) runParallel(ctx context.Context, out chan<- types.Outcome, exec caseExec[R], workers int) {
	buffer := bufferSize(workers)
	workChan := make(chan registry.Case[R], buffer)
	resultChan := make(chan types.Outcome, buffer)

	r.log.Debug("Starting workers", "workers", workers, "buffer", buffer)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, i, &wg, workChan, resultChan, exec)
	}

	// Feed work in registration order.
	go func() {
		defer close(workChan)
		for _, c := range r.cases {
			workChan <- c
		}
	}()

	// Close the result stream once every worker is done.
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for o := range resultChan {
		out <- o
	}
}

// worker processes cases until the work channel is closed.
func (r *Runner[R]) worker(ctx context.Context, id int, wg *sync.WaitGroup, workChan <-chan registry.Case[R], resultChan chan<- types.Outcome, exec caseExec[R]) {
	defer wg.Done()

	r.log.Debug("Worker starting", "worker", id)
	defer r.log.Debug("Worker exiting", "worker", id)

	for c := range workChan {
		resultChan <- r.executeOne(ctx, c, exec)
	}
}
