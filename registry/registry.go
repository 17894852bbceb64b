// Package registry holds the registration surface of a suite: the ordered
// list of cases accumulated before the first run, the name filter applied
// to it, and the resource contract cases run against.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gauntlet-ci/gauntlet/logging"
	"github.com/gauntlet-ci/gauntlet/types"
)

// Body is a registered case's executable. The resource is the suite
// dependency in whatever sharing mode the suite was built with; the logger
// captures case output for the Outcome.
type Body[R any] func(ctx context.Context, res R, log *logging.TestLogger) error

// Case is one registered (name, body) pair. Index is the registration
// position; names are not required to be unique.
type Case[R any] struct {
	Name     string
	Index    int
	Location *types.Location
	Body     Body[R]
}

// FrozenError reports a registration attempted after the suite started
// executing. This is a programming error: the registry panics with it
// rather than returning it.
type FrozenError struct {
	Suite string
	Case  string
}

func (e *FrozenError) Error() string {
	return fmt.Sprintf("suite %q is frozen: cannot register case %q after the first run", e.Suite, e.Case)
}

// Registry accumulates cases for one suite until the first Snapshot call
// freezes it. All methods are safe for concurrent use.
type Registry[R any] struct {
	suite  string
	log    *slog.Logger
	mu     sync.Mutex
	frozen bool
	cases  []Case[R]
}

// NewRegistry creates an empty registry for the named suite.
func NewRegistry[R any](suite string, log *slog.Logger) *Registry[R] {
	if log == nil {
		log = slog.Default()
	}
	return &Registry[R]{
		suite: suite,
		log:   log.With("suite", suite),
	}
}

// Suite returns the suite name the registry was created for.
func (r *Registry[R]) Suite() string {
	return r.suite
}

// Register appends a case in registration order. Duplicate names are
// allowed and all occurrences run. Register panics with *FrozenError once
// the registry has been frozen by Snapshot.
func (r *Registry[R]) Register(name string, body Body[R], loc *types.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic(&FrozenError{Suite: r.suite, Case: name})
	}

	r.cases = append(r.cases, Case[R]{
		Name:     name,
		Index:    len(r.cases),
		Location: loc,
		Body:     body,
	})
	r.log.Debug("Registered case", "name", name, "index", len(r.cases)-1)
}

// Snapshot freezes the registry on first call and returns a copy of the
// registered cases. Later calls return the same frozen contents.
func (r *Registry[R]) Snapshot() []Case[R] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.frozen {
		r.frozen = true
		r.log.Debug("Registry frozen", "cases", len(r.cases))
	}

	out := make([]Case[R], len(r.cases))
	copy(out, r.cases)
	return out
}

// Frozen reports whether the registry has been frozen.
func (r *Registry[R]) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Len returns the number of registered cases.
func (r *Registry[R]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cases)
}
