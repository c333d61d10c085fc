package stagerun

import (
	"fmt"
	"reflect"
	"sync"
)

// World is the shared mutable entity/component store every phase receives.
// The scheduler never inspects it: it is threaded through phase calls
// untouched, and its representation is entirely the host's concern.
type World interface{}

// Resources is a typed registry of shared state, keyed by dynamic type.
// One value may be stored per type; inserting again replaces the previous
// value. The run loop inserts the *Settings resource before the startup
// pass and each stage publishes its PulseSnapshot here before a gated
// process pass.
//
// Resources is safe for concurrent use: schedulable operations may run on
// worker goroutines.
type Resources struct {
	mu      sync.RWMutex
	entries map[reflect.Type]any
}

// NewResources creates an empty resource store.
func NewResources() *Resources {
	return &Resources{entries: make(map[reflect.Type]any)}
}

// Insert stores value keyed by its dynamic type, replacing any previous
// value of that type.
func (r *Resources) Insert(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reflect.TypeOf(value)] = value
}

// Get returns the value stored for t, if any.
func (r *Resources) Get(t reflect.Type) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[t]
	return v, ok
}

// Contains reports whether a value of type t is present.
func (r *Resources) Contains(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[t]
	return ok
}

// Remove deletes and returns the value stored for t.
func (r *Resources) Remove(t reflect.Type) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[t]
	if ok {
		delete(r.entries, t)
	}
	return v, ok
}

// InsertResource stores value keyed by its static type T.
func InsertResource[T any](r *Resources, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[typeOf[T]()] = value
}

// GetResource retrieves the value stored for type T.
func GetResource[T any](r *Resources) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[typeOf[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// MustResource retrieves the value stored for type T and panics when it is
// absent. Reserved for invariants the scheduler itself maintains, like the
// Settings resource staying in the store for the lifetime of the run loop.
func MustResource[T any](r *Resources) T {
	v, ok := GetResource[T](r)
	if !ok {
		panic(fmt.Errorf("%w: %v", ErrResourceNotFound, typeOf[T]()))
	}
	return v
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
