// SPDX-License-Identifier: MPL-2.0

package language

import (
	"fmt"
	"path/filepath"
	"plugin"
	"reflect"
	"strings"
)

// PluginScheme is the specifier prefix handled by Plugin.
const PluginScheme = "plugin:"

// Plugin builds instances from Go plugins. Specifiers have the form
// "plugin:<path to .so>#<Symbol>", where Symbol is a func() any or a
// func() (any, error). Relative paths resolve against BaseDir.
type Plugin struct {
	BaseDir string

	open func(path string) (symbolLookup, error)
}

type symbolLookup interface {
	Lookup(name string) (plugin.Symbol, error)
}

// NewPlugin creates a Plugin adapter resolving relative paths against baseDir.
func NewPlugin(baseDir string) *Plugin {
	return &Plugin{BaseDir: baseDir}
}

// CreateInstance implements Adapter.
func (p *Plugin) CreateInstance(specifier string, capability reflect.Type) (any, error) {
	rest, ok := strings.CutPrefix(specifier, PluginScheme)
	if !ok {
		return nil, &UnknownSpecifierError{Adapter: "plugin", Specifier: specifier}
	}
	path, symbol, ok := strings.Cut(rest, "#")
	if !ok || path == "" || symbol == "" {
		return nil, fmt.Errorf("plugin adapter: specifier %q must be plugin:<path>#<Symbol>", specifier)
	}
	if !filepath.IsAbs(path) && p.BaseDir != "" {
		path = filepath.Join(p.BaseDir, path)
	}

	open := p.open
	if open == nil {
		open = func(path string) (symbolLookup, error) { return plugin.Open(path) }
	}
	lib, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin adapter: open %s: %w", path, err)
	}
	sym, err := lib.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("plugin adapter: %w", err)
	}

	var inst any
	switch ctor := sym.(type) {
	case func() any:
		inst = ctor()
	case func() (any, error):
		if inst, err = ctor(); err != nil {
			return nil, fmt.Errorf("plugin adapter: %s: %w", symbol, err)
		}
	default:
		return nil, fmt.Errorf("plugin adapter: symbol %s has type %T, want func() any or func() (any, error)", symbol, sym)
	}
	if !provides(inst, capability) {
		return nil, &CapabilityError{Specifier: specifier, Capability: capability, Got: reflect.TypeOf(inst)}
	}
	return inst, nil
}
