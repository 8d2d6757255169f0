// SPDX-License-Identifier: MPL-2.0

package transformer

import (
	"fmt"
	"slices"
)

type (
	// Visitor is a pending edit over a class's bytes. Visitors run in the order
	// they were added when the container is applied.
	Visitor func(name string, data []byte) ([]byte, error)

	// ClassContainer is the in-flight representation of one class being prepared
	// for load. It is created per load request and never shared.
	ClassContainer struct {
		name     string
		data     []byte
		skip     bool
		visitors []Visitor
	}
)

// NewClassContainer creates a container for the class name with its raw bytes.
func NewClassContainer(name string, data []byte) *ClassContainer {
	return &ClassContainer{name: name, data: data}
}

// Name returns the fully-qualified class name.
func (c *ClassContainer) Name() string { return c.name }

// Bytes returns the class bytes before pending visitors are applied.
func (c *ClassContainer) Bytes() []byte { return c.data }

// Skip reports whether the class has been excluded from loading.
func (c *ClassContainer) Skip() bool { return c.skip }

// SetSkip excludes the class from loading and stops the pipeline. It cannot be undone.
func (c *ClassContainer) SetSkip() { c.skip = true }

// AddVisitor queues an edit.
func (c *ClassContainer) AddVisitor(v Visitor) {
	c.visitors = append(c.visitors, v)
}

// Visitors returns the number of queued edits.
func (c *ClassContainer) Visitors() int { return len(c.visitors) }

// Apply runs the queued visitors over a copy of the class bytes and returns the
// result. The bytes the container was created with are never written. A skipped
// container yields nil.
func (c *ClassContainer) Apply() ([]byte, error) {
	if c.skip {
		return nil, nil
	}
	data := slices.Clone(c.data)
	for i, v := range c.visitors {
		out, err := v(c.name, data)
		if err != nil {
			return nil, fmt.Errorf("class %s: visitor %d: %w", c.name, i, err)
		}
		data = out
	}
	return data, nil
}
