// SPDX-License-Identifier: MPL-2.0

// Package language resolves specifier strings into live instances of a requested
// capability. Manifest-declared transformations name their implementation by
// specifier only, so any adapter able to build an instance assignable to the
// capability may supply it.
package language

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrNoAdapters is the primary failure of a Delegating adapter with no children.
	ErrNoAdapters = errors.New("no language adapters registered")
	// ErrUnknownSpecifier is returned by adapters that cannot handle a specifier.
	ErrUnknownSpecifier = errors.New("no such specifier")
	// ErrCapability is wrapped by CapabilityError.
	ErrCapability = errors.New("instance does not provide the requested capability")
)

type (
	// Adapter creates instances for specifiers. The returned instance must be
	// assignable to capability.
	Adapter interface {
		CreateInstance(specifier string, capability reflect.Type) (any, error)
	}

	// AdapterFunc adapts a function to the Adapter interface.
	AdapterFunc func(specifier string, capability reflect.Type) (any, error)

	// Delegating tries its children in registration order and returns the first
	// success. Children are registered at startup and never removed.
	Delegating struct {
		mu       sync.RWMutex
		children []Adapter
	}

	// ResolutionError aggregates every child failure of a Delegating adapter.
	// Primary is the first child's failure; Suppressed holds the rest in order.
	ResolutionError struct {
		Specifier  string
		Primary    error
		Suppressed []error
	}

	// CapabilityError is returned when an instance was built but does not satisfy
	// the requested capability.
	CapabilityError struct {
		Specifier  string
		Capability reflect.Type
		Got        reflect.Type
	}
)

// CreateInstance implements Adapter.
func (f AdapterFunc) CreateInstance(specifier string, capability reflect.Type) (any, error) {
	return f(specifier, capability)
}

// NewDelegating creates a Delegating adapter over children.
func NewDelegating(children ...Adapter) *Delegating {
	return &Delegating{children: slices.Clone(children)}
}

// Register appends a child adapter.
func (d *Delegating) Register(a Adapter) {
	d.mu.Lock()
	d.children = append(d.children, a)
	d.mu.Unlock()
}

// Adapters iterates over the children in registration order.
func (d *Delegating) Adapters() iter.Seq[Adapter] {
	d.mu.RLock()
	children := slices.Clone(d.children)
	d.mu.RUnlock()
	return slices.Values(children)
}

// CreateInstance implements Adapter.
func (d *Delegating) CreateInstance(specifier string, capability reflect.Type) (any, error) {
	var resErr *ResolutionError
	for child := range d.Adapters() {
		inst, err := child.CreateInstance(specifier, capability)
		if err == nil {
			return inst, nil
		}
		if resErr == nil {
			resErr = &ResolutionError{Specifier: specifier, Primary: err}
			continue
		}
		resErr.Suppressed = append(resErr.Suppressed, err)
	}
	if resErr == nil {
		return nil, &ResolutionError{Specifier: specifier, Primary: ErrNoAdapters}
	}
	return nil, resErr
}

// Create resolves specifier through a and returns the instance as T.
func Create[T any](a Adapter, specifier string) (T, error) {
	var zero T
	capability := reflect.TypeFor[T]()
	inst, err := a.CreateInstance(specifier, capability)
	if err != nil {
		return zero, err
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, &CapabilityError{Specifier: specifier, Capability: capability, Got: reflect.TypeOf(inst)}
	}
	return typed, nil
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "could not create instance for %q: %v", e.Specifier, e.Primary)
	for _, s := range e.Suppressed {
		fmt.Fprintf(&sb, "\n  suppressed: %v", s)
	}
	return sb.String()
}

// Unwrap exposes the primary and every suppressed failure to errors.Is/As.
func (e *ResolutionError) Unwrap() []error {
	out := make([]error, 0, len(e.Suppressed)+1)
	out = append(out, e.Primary)
	return append(out, e.Suppressed...)
}

// Errors returns the primary failure followed by the suppressed ones.
func (e *ResolutionError) Errors() []error {
	return e.Unwrap()
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %v does not implement %v", e.Specifier, e.Got, e.Capability)
}

// Unwrap returns ErrCapability so callers can use errors.Is for programmatic detection.
func (e *CapabilityError) Unwrap() error { return ErrCapability }

// provides reports whether inst can be used as capability.
func provides(inst any, capability reflect.Type) bool {
	if inst == nil {
		return false
	}
	if capability == nil {
		return true
	}
	return reflect.TypeOf(inst).AssignableTo(capability)
}
