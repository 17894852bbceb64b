package registry

import "context"

// Resource provisions the dependency a suite's cases run against. Acquire
// and Release are invoked by the engine according to the suite's sharing
// mode; implementations must tolerate Release being called with a value
// from any prior Acquire.
type Resource[R any] interface {
	// Acquire provisions the dependency. The context carries run
	// cancellation; a failed Acquire must not require Release.
	Acquire(ctx context.Context) (R, error)
	// Release tears the dependency down. It is called exactly once per
	// successful Acquire, on every exit path.
	Release(ctx context.Context, res R) error
}

// ResourceFuncs adapts a pair of functions to the Resource interface.
// A nil ReleaseFn makes Release a no-op.
type ResourceFuncs[R any] struct {
	AcquireFn func(ctx context.Context) (R, error)
	ReleaseFn func(ctx context.Context, res R) error
}

func (f ResourceFuncs[R]) Acquire(ctx context.Context) (R, error) {
	return f.AcquireFn(ctx)
}

func (f ResourceFuncs[R]) Release(ctx context.Context, res R) error {
	if f.ReleaseFn == nil {
		return nil
	}
	return f.ReleaseFn(ctx, res)
}

// NoResource is the Resource for suites whose cases need no dependency.
type NoResource struct{}

func (NoResource) Acquire(context.Context) (struct{}, error) {
	return struct{}{}, nil
}

func (NoResource) Release(context.Context, struct{}) error {
	return nil
}
