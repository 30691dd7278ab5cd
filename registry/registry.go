// Package registry holds the resources and services request handlers need.
//
// Entries are written only while lifecycle hooks run their setup phase, which is
// strictly sequential and finishes before any request is served. After Seal the
// registry is read-only, so it carries no locks.
package registry

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrSealed is returned when writing to a registry after setup completed.
	ErrSealed = errors.New("registry is sealed")
	// ErrDuplicate is returned when an entry name is already taken.
	ErrDuplicate = errors.New("registry entry already exists")
	// ErrNotFound is returned when resolving a name nobody provided.
	ErrNotFound = errors.New("registry entry not found")
)

// Key names a registry entry and fixes its type at compile time.
type Key[T any] struct {
	name string
}

// NewKey creates a typed key. Names must be unique per registry.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the entry name used in dependency declarations.
func (k Key[T]) Name() string { return k.name }

func (k Key[T]) String() string { return k.name }

// Registry maps unique names to resource handles, services and constants.
type Registry struct {
	entries map[string]any
	order   []string
	sealed  atomic.Bool
}

// New creates an empty, writable registry.
func New() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Provide stores value under key. It fails once the registry is sealed or when the
// name is already taken; entries are never overwritten.
func Provide[T any](r *Registry, key Key[T], value T) error {
	if r.sealed.Load() {
		return fmt.Errorf("provide %q: %w", key.name, ErrSealed)
	}
	if _, exists := r.entries[key.name]; exists {
		return fmt.Errorf("provide %q: %w", key.name, ErrDuplicate)
	}
	r.entries[key.name] = value
	r.order = append(r.order, key.name)
	return nil
}

// Resolve retrieves the entry stored under key.
func Resolve[T any](r *Registry, key Key[T]) (T, error) {
	var zero T
	v, exists := r.entries[key.name]
	if !exists {
		return zero, fmt.Errorf("resolve %q: %w", key.name, ErrNotFound)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resolve %q: entry is %T, want %T", key.name, v, zero)
	}
	return typed, nil
}

// MustResolve retrieves an entry, panicking if it is missing. Use it only where a
// lifecycle dependency guarantees the entry exists.
func MustResolve[T any](r *Registry, key Key[T]) T {
	v, err := Resolve(r, key)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether an entry with the given name exists.
func (r *Registry) Has(name string) bool {
	_, exists := r.entries[name]
	return exists
}

// Names returns entry names in insertion order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.order) }

// Seal makes the registry read-only for the rest of the process.
func (r *Registry) Seal() { r.sealed.Store(true) }

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }
