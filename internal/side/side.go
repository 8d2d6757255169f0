// SPDX-License-Identifier: MPL-2.0

// Package side strips classes and members that belong to the other execution
// environment. It is registered as a built-in transformation.
package side

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/felisloader/felis/internal/discovery"
	"github.com/felisloader/felis/internal/transformer"
	"github.com/felisloader/felis/pkg/modmeta"
)

type (
	// Plan is what a Locator found for one class.
	Plan struct {
		// SkipEntire excludes the whole class.
		SkipEntire bool
		// Methods and Fields are member descriptors to remove.
		Methods []string
		Fields  []string
	}

	// Locator inspects a class and decides what to strip for the given side.
	Locator interface {
		Locate(c *transformer.ClassContainer, current modmeta.Side) (Plan, error)
	}

	// Stripper builds the visitor that removes members from class bytes.
	Stripper func(methods, fields []string) transformer.Visitor

	// Transformation is the side-stripping built-in. With Auditing set it locates
	// what it would strip and logs that at debug level instead of applying it.
	Transformation struct {
		Side     modmeta.Side
		Auditing bool
		Locator  Locator
		Stripper Stripper
		// Logger receives audit output; nil discards it.
		Logger *log.Logger
	}

	// ManifestLocator binds whole classes to a side from the mods' [sides] tables.
	ManifestLocator struct {
		bindings map[string]modmeta.Side
	}
)

// Transform implements transformer.Transformation.
func (t *Transformation) Transform(c *transformer.ClassContainer) error {
	if t.Locator == nil {
		return nil
	}

	plan, err := t.Locator.Locate(c, t.Side)
	if t.Auditing {
		t.audit(c, plan, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("locate %s members: %w", t.Side.Opposite(), err)
	}
	if plan.SkipEntire {
		c.SetSkip()
		return nil
	}
	if len(plan.Methods) == 0 && len(plan.Fields) == 0 {
		return nil
	}
	if t.Stripper == nil {
		return fmt.Errorf("class %s has %s-only members but no stripper is configured", c.Name(), t.Side.Opposite())
	}
	c.AddVisitor(t.Stripper(plan.Methods, plan.Fields))
	return nil
}

// audit logs the plan for c without touching the container.
func (t *Transformation) audit(c *transformer.ClassContainer, plan Plan, err error) {
	if t.Logger == nil {
		return
	}
	if err != nil {
		t.Logger.Warn("auditing: could not locate members", "class", c.Name(), "side", t.Side.Opposite(), "err", err)
		return
	}
	if !plan.SkipEntire && len(plan.Methods) == 0 && len(plan.Fields) == 0 {
		return
	}
	t.Logger.Debug("auditing: would strip "+string(t.Side.Opposite())+"-only code",
		"class", c.Name(), "skip", plan.SkipEntire, "methods", plan.Methods, "fields", plan.Fields)
}

// String names the transformation in diagnostics.
func (t *Transformation) String() string { return "side-strip(" + string(t.Side) + ")" }

// NewManifestLocator collects class bindings from every mod. When two mods bind
// the same class, the first registered mod wins.
func NewManifestLocator(mods []*discovery.Mod) *ManifestLocator {
	bindings := make(map[string]modmeta.Side)
	for _, m := range mods {
		for class, s := range m.Metadata.Sides {
			if _, exists := bindings[class]; !exists {
				bindings[class] = s
			}
		}
	}
	return &ManifestLocator{bindings: bindings}
}

// Locate implements Locator.
func (l *ManifestLocator) Locate(c *transformer.ClassContainer, current modmeta.Side) (Plan, error) {
	bound, ok := l.bindings[c.Name()]
	if !ok {
		return Plan{}, nil
	}
	return Plan{SkipEntire: bound != current}, nil
}
