// Package lock provides in-process advisory locks keyed by absolute file
// path. Every component that mutates a task file holds the path's lock
// across its full read-modify-write cycle, which serializes writers within
// one orchestrator process. Cross-process coordination is out of scope.
package lock

import (
	"path/filepath"
	"sync"
)

// Registry hands out one mutex per canonical path. Mutexes are created
// lazily and never discarded; the set of task files in a workspace is small
// and stable.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

// mutexFor returns the mutex for path, creating it on first use. Paths are
// canonicalized so "./a/b" and "a/b" share a lock.
func (r *Registry) mutexFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.locks[abs]
	if !ok {
		m = &sync.Mutex{}
		r.locks[abs] = m
	}
	return m
}

// Acquire blocks until the lock for path is held and returns the release
// function. Callers must release with the returned function, typically via
// defer.
func (r *Registry) Acquire(path string) (release func()) {
	m := r.mutexFor(path)
	m.Lock()
	return m.Unlock
}

// With runs fn while holding the lock for path.
func (r *Registry) With(path string, fn func() error) error {
	release := r.Acquire(path)
	defer release()
	return fn()
}

// defaultRegistry backs the package-level helpers. Components that do not
// carry their own registry share this one, which is what gives the
// per-process serialization guarantee.
var defaultRegistry = NewRegistry()

// Acquire acquires the lock for path from the shared registry.
func Acquire(path string) (release func()) {
	return defaultRegistry.Acquire(path)
}

// With runs fn while holding the shared registry's lock for path.
func With(path string, fn func() error) error {
	return defaultRegistry.With(path, fn)
}
