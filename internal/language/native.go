// SPDX-License-Identifier: MPL-2.0

package language

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// NativeScheme is the default specifier prefix handled by Native.
const NativeScheme = "native:"

type (
	// Factory builds a fresh instance.
	Factory func() (any, error)

	// Native resolves specifiers against factories compiled into the binary.
	// A specifier is the scheme followed by the registered name, e.g.
	// "native:side-strip".
	Native struct {
		scheme string

		mu        sync.RWMutex
		factories map[string]Factory
	}

	// UnknownSpecifierError is returned when an adapter has no factory for a specifier.
	UnknownSpecifierError struct {
		Adapter   string
		Specifier string
	}
)

// NewNative creates an empty Native adapter for scheme. An empty scheme means NativeScheme.
func NewNative(scheme string) *Native {
	if scheme == "" {
		scheme = NativeScheme
	}
	return &Native{scheme: scheme, factories: make(map[string]Factory)}
}

// Register binds name to f. Registering a name twice is an error.
func (n *Native) Register(name string, f Factory) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.factories[name]; exists {
		return fmt.Errorf("native factory %q already registered", name)
	}
	n.factories[name] = f
	return nil
}

// Names returns the registered names with their scheme, unordered.
func (n *Native) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.factories))
	for name := range n.factories {
		out = append(out, n.scheme+name)
	}
	return out
}

// CreateInstance implements Adapter.
func (n *Native) CreateInstance(specifier string, capability reflect.Type) (any, error) {
	name, ok := strings.CutPrefix(specifier, n.scheme)
	if !ok {
		return nil, &UnknownSpecifierError{Adapter: "native", Specifier: specifier}
	}

	n.mu.RLock()
	f, ok := n.factories[name]
	n.mu.RUnlock()
	if !ok {
		return nil, &UnknownSpecifierError{Adapter: "native", Specifier: specifier}
	}

	inst, err := f()
	if err != nil {
		return nil, fmt.Errorf("native factory %q: %w", name, err)
	}
	if !provides(inst, capability) {
		return nil, &CapabilityError{Specifier: specifier, Capability: capability, Got: reflect.TypeOf(inst)}
	}
	return inst, nil
}

// Error implements the error interface.
func (e *UnknownSpecifierError) Error() string {
	return fmt.Sprintf("%s adapter: no such specifier %q", e.Adapter, e.Specifier)
}

// Unwrap returns ErrUnknownSpecifier so callers can use errors.Is for programmatic detection.
func (e *UnknownSpecifierError) Unwrap() error { return ErrUnknownSpecifier }
