// SPDX-License-Identifier: MPL-2.0

package transformer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/felisloader/felis/internal/language"
)

// ErrTransform is wrapped by TransformError.
var ErrTransform = errors.New("class transformation failed")

type (
	// Transformation rewrites a class in place. It may queue visitors and may
	// mark the container skipped.
	Transformation interface {
		Transform(c *ClassContainer) error
	}

	// Func adapts a function to the Transformation interface.
	Func func(c *ClassContainer) error

	// Named is a manifest-declared transformation after resolution.
	Named struct {
		ModID string
		Name  string
		Transformation
	}

	// TransformError reports which transformation failed for which class.
	TransformError struct {
		Class          string
		Transformation string
		// Resolving is true when the failure happened while resolving the
		// specifier rather than while transforming.
		Resolving bool
		Err       error
	}

	// handle defers resolving a manifest-declared transformation until first use
	// and memoises the outcome, success or failure.
	handle struct {
		modID     string
		name      string
		specifier string
		adapter   language.Adapter

		mu       sync.Mutex
		resolved atomic.Pointer[resolution]
	}

	resolution struct {
		named *Named
		err   error
	}
)

// Transform implements Transformation.
func (f Func) Transform(c *ClassContainer) error { return f(c) }

// Error implements the error interface.
func (e *TransformError) Error() string {
	if e.Resolving {
		return fmt.Sprintf("resolve transformation %s for class %s: %v", e.Transformation, e.Class, e.Err)
	}
	return fmt.Sprintf("transformation %s failed on class %s: %v", e.Transformation, e.Class, e.Err)
}

// Unwrap returns ErrTransform together with the underlying cause.
func (e *TransformError) Unwrap() []error { return []error{ErrTransform, e.Err} }

func newHandle(modID, name, specifier string, adapter language.Adapter) *handle {
	return &handle{modID: modID, name: name, specifier: specifier, adapter: adapter}
}

// get resolves the handle once. Concurrent first callers wait for the single
// resolution of this handle only.
func (h *handle) get() (*Named, error) {
	if r := h.resolved.Load(); r != nil {
		return r.named, r.err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.resolved.Load(); r != nil {
		return r.named, r.err
	}

	r := &resolution{}
	t, err := language.Create[Transformation](h.adapter, h.specifier)
	if err != nil {
		r.err = err
	} else {
		r.named = &Named{ModID: h.modID, Name: h.name, Transformation: t}
	}
	h.resolved.Store(r)
	return r.named, r.err
}

func (h *handle) label() string {
	return h.modID + ":" + h.name
}
