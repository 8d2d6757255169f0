// SPDX-License-Identifier: MPL-2.0

// Package transformer applies manifest-declared and built-in transformations to
// classes as they load.
//
// Manifest-declared transformations run first, in mod registration order and then
// declaration order, so a narrowly targeted mod rewrite can skip a class before the
// generic built-in passes spend work on it. Built-ins follow in registration order.
// Any transformation may mark the class skipped, which ends the pipeline.
package transformer

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/felisloader/felis/internal/discovery"
	"github.com/felisloader/felis/internal/language"
)

// Transformer is the class transformation pipeline. It is itself a Transformation.
type Transformer struct {
	logger   *log.Logger
	external map[string][]*handle

	mu       sync.RWMutex
	internal []Transformation
}

// New builds the pipeline for mods, resolving manifest specifiers through adapter
// on first use. One handle is shared by every target of a declaration.
func New(mods []*discovery.Mod, adapter language.Adapter, logger *log.Logger) *Transformer {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	external := make(map[string][]*handle)
	for _, mod := range mods {
		for _, decl := range mod.Transformations() {
			h := newHandle(mod.ModID, decl.Name, decl.Specifier, adapter)
			for _, target := range decl.Targets {
				external[target] = append(external[target], h)
			}
		}
	}

	return &Transformer{logger: logger, external: external}
}

// RegisterTransformation appends a built-in transformation. Built-ins apply in
// registration order after every manifest-declared transformation.
func (t *Transformer) RegisterTransformation(tr Transformation) {
	t.mu.Lock()
	t.internal = append(t.internal, tr)
	t.mu.Unlock()
}

// Transform implements Transformation. Errors are returned as *TransformError and
// abort the rest of the pipeline for this class.
func (t *Transformer) Transform(c *ClassContainer) error {
	name := c.Name()

	for _, h := range t.external[name] {
		named, err := h.get()
		if err != nil {
			return &TransformError{Class: name, Transformation: h.label(), Resolving: true, Err: err}
		}
		t.logger.Info("transforming", "class", name, "with", named.Name, "mod", named.ModID)
		if err := named.Transform(c); err != nil {
			return &TransformError{Class: name, Transformation: h.label(), Err: err}
		}
		if c.Skip() {
			return nil
		}
	}

	t.mu.RLock()
	internal := slices.Clone(t.internal)
	t.mu.RUnlock()

	for i, tr := range internal {
		if err := tr.Transform(c); err != nil {
			return &TransformError{Class: name, Transformation: builtinLabel(tr, i), Err: err}
		}
		if c.Skip() {
			return nil
		}
	}
	return nil
}

// Targets returns the class names that have manifest-declared transformations, sorted.
func (t *Transformer) Targets() []string {
	return slices.Sorted(maps.Keys(t.external))
}

// Declared returns the labels of the manifest-declared transformations targeting
// class, in application order.
func (t *Transformer) Declared(class string) []string {
	hs := t.external[class]
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.label())
	}
	return out
}

// builtinLabel names a built-in for error messages.
func builtinLabel(tr Transformation, index int) string {
	if s, ok := tr.(interface{ String() string }); ok {
		return s.String()
	}
	return "builtin#" + strconv.Itoa(index)
}
