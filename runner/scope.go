package runner

import (
	"context"

	"github.com/gauntlet-ci/gauntlet/registry"
	"github.com/gauntlet-ci/gauntlet/types"
)

// Sharing selects how the suite resource is provisioned across cases.
type Sharing string

const (
	// SharingShared acquires the resource once per run and hands the same
	// value to every case. Nothing is acquired when the filtered case set
	// is empty.
	SharingShared Sharing = "shared"

	// SharingPerTest brackets every case with its own acquire/release
	// pair; case resource lifetimes are independent of each other.
	SharingPerTest Sharing = "per-test"
)

// Valid reports whether s is one of the defined sharing modes.
func (s Sharing) Valid() bool {
	return s == SharingShared || s == SharingPerTest
}

// caseExec executes one case with its resource provisioning already bound.
type caseExec[R any] func(ctx context.Context, c registry.Case[R]) types.Outcome

// bindScope prepares the run's resource state for the configured sharing
// mode. It returns the bound case executor and a finish function that
// must run exactly once after the last case; finish releases the shared
// resource and reports run-level resource errors. bindScope itself fails
// only when the shared acquisition fails, which happens outside any case
// and is therefore a run-level error rather than an outcome.
func (r *Runner[R]) bindScope(ctx context.Context) (caseExec[R], func() error, error) {
	if r.sharing == SharingPerTest {
		return r.runPerTest, func() error { return nil }, nil
	}
	return r.bindShared(ctx)
}

func (r *Runner[R]) bindShared(ctx context.Context) (caseExec[R], func() error, error) {
	r.log.Debug("Acquiring shared resource")
	res, err := r.resource.Acquire(ctx)
	if err != nil {
		r.log.Error("Shared resource acquisition failed", "error", err)
		return nil, nil, types.NewResourceError("acquire", err)
	}

	exec := func(ctx context.Context, c registry.Case[R]) types.Outcome {
		return r.runCase(ctx, c, res)
	}

	released := false
	finish := func() error {
		if released {
			return nil
		}
		released = true

		// The release must happen even when the run context was cancelled.
		if relErr := r.resource.Release(context.WithoutCancel(ctx), res); relErr != nil {
			r.log.Error("Shared resource release failed", "error", relErr)
			return types.NewResourceError("release", relErr)
		}
		r.log.Debug("Shared resource released")
		return nil
	}

	return exec, finish, nil
}

// runPerTest brackets one case with a fresh acquire/release pair. An
// acquisition failure fails only this case; siblings provision their own
// resource independently. A release failure fails the case when it would
// otherwise have passed.
func (r *Runner[R]) runPerTest(ctx context.Context, c registry.Case[R]) (out types.Outcome) {
	r.log.Debug("Acquiring case resource", "name", c.Name)
	res, err := r.resource.Acquire(ctx)
	if err != nil {
		r.log.Error("Case resource acquisition failed", "name", c.Name, "error", err)
		return types.Outcome{
			Suite:    r.suite,
			Name:     c.Name,
			Index:    c.Index,
			Status:   types.StatusFailure,
			Err:      types.NewResourceError("acquire", err),
			Location: c.Location,
		}
	}

	defer func() {
		if relErr := r.resource.Release(context.WithoutCancel(ctx), res); relErr != nil {
			r.log.Error("Case resource release failed", "name", c.Name, "error", relErr)
			if out.Status == types.StatusSuccess {
				out.Status = types.StatusFailure
				out.Err = types.NewResourceError("release", relErr)
			}
		}
	}()

	return r.runCase(ctx, c, res)
}
