// Package lifecycle tracks resources owned by a run (content buffers, open
// source files) and guarantees each is released exactly once no matter how
// the run ends. ReleaseAll is idempotent so the interrupt handler can race
// normal teardown safely.
package lifecycle

import (
	"errors"
	"sync"
)

// Resource is anything that must be released when the run ends.
type Resource interface {
	Release() error
}

// ReleaseFunc adapts a function into a Resource.
type ReleaseFunc func() error

// Release executes f.
func (f ReleaseFunc) Release() error {
	if f == nil {
		return nil
	}
	return f()
}

type entry struct {
	resource Resource
	released bool
}

// Registry owns registered resources. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a resource. Nil resources are ignored.
func (r *Registry) Register(res Resource) {
	if r == nil || res == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &entry{resource: res})
}

// Len reports how many resources are currently tracked, released or not.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ReleaseAll releases every tracked resource in reverse registration order.
// Each resource is released at most once; repeated calls are no-ops for
// already-released entries. Release errors are collected, not short-circuited.
func (r *Registry) ReleaseAll() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.released {
			continue
		}
		e.released = true
		if err := e.resource.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
