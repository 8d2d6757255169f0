// SPDX-License-Identifier: MPL-2.0

// Package loader ties discovery, language adapters and the transformation pipeline
// into one explicit context. A Loader is built from configuration, discovers once,
// and then transforms classes for the lifetime of the process.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/felisloader/felis/internal/config"
	"github.com/felisloader/felis/internal/discovery"
	"github.com/felisloader/felis/internal/language"
	"github.com/felisloader/felis/internal/side"
	"github.com/felisloader/felis/internal/transformer"
	"github.com/felisloader/felis/pkg/content"
)

var (
	// ErrNotDiscovered is returned when the pipeline is requested before Discover.
	ErrNotDiscovered = errors.New("loader: discovery has not run")
	// ErrAlreadyDiscovered is returned by a second Discover call.
	ErrAlreadyDiscovered = errors.New("loader: discovery already ran")
)

type (
	// Option customises a Loader.
	Option func(*Loader)

	// Loader is the discovery and transformation context.
	Loader struct {
		cfg        *config.Config
		logger     *log.Logger
		discoverer *discovery.Discoverer
		native     *language.Native
		adapter    *language.Delegating
		builtins   []transformer.Transformation
		locator    side.Locator
		stripper   side.Stripper

		mu         sync.Mutex
		discovered bool
		summary    discovery.Summary
		pipeline   *transformer.Transformer
		closers    []io.Closer
	}
)

// WithLogger sets the parent logger. Components log under their own prefixes.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithAdapter appends a language adapter after the native one.
func WithAdapter(a language.Adapter) Option {
	return func(l *Loader) { l.adapter.Register(a) }
}

// WithPluginDir enables "plugin:" specifiers, resolving relative paths against dir.
func WithPluginDir(dir string) Option {
	return WithAdapter(language.NewPlugin(dir))
}

// WithBuiltin registers a built-in transformation. Built-ins run after the side
// stripper, in registration order.
func WithBuiltin(tr transformer.Transformation) Option {
	return func(l *Loader) { l.builtins = append(l.builtins, tr) }
}

// WithSideLocator replaces the manifest [sides] locator.
func WithSideLocator(loc side.Locator) Option {
	return func(l *Loader) { l.locator = loc }
}

// WithStripper supplies the member stripping visitor factory.
func WithStripper(s side.Stripper) Option {
	return func(l *Loader) { l.stripper = s }
}

// New creates a Loader. A nil cfg means config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) *Loader {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	native := language.NewNative("")
	l := &Loader{
		cfg:     cfg,
		logger:  log.New(io.Discard),
		native:  native,
		adapter: language.NewDelegating(native),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.discoverer = discovery.New(l.logger.WithPrefix("discovery"))
	return l
}

// Config returns the configuration the Loader was built with.
func (l *Loader) Config() *config.Config { return l.cfg }

// Native returns the native adapter so callers can register factories before
// the first class load.
func (l *Loader) Native() *language.Native { return l.native }

// Discoverer exposes discovery results.
func (l *Loader) Discoverer() *discovery.Discoverer { return l.discoverer }

// DirScanner builds a scanner over the configured mod directories. The Loader
// closes it on Close.
func (l *Loader) DirScanner(roots ...string) *content.DirScanner {
	if len(roots) == 0 {
		roots = l.cfg.ModDirs
	}
	s := &content.DirScanner{
		Roots:    roots,
		Patterns: l.cfg.ContainerPatterns,
		Workers:  l.cfg.Workers,
		Skipped: func(path string, err error) {
			l.logger.Warn("skipping unreadable container", "path", path, "err", err)
		},
	}
	l.mu.Lock()
	l.closers = append(l.closers, s)
	l.mu.Unlock()
	return s
}

// Discover walks every scanner, or the configured mod directories when none is
// given, and logs the summary. A mod id collision aborts discovery.
func (l *Loader) Discover(ctx context.Context, scanners ...content.Scanner) (discovery.Summary, error) {
	l.mu.Lock()
	if l.discovered {
		l.mu.Unlock()
		return discovery.Summary{}, ErrAlreadyDiscovered
	}
	l.discovered = true
	l.mu.Unlock()

	if len(scanners) == 0 {
		scanners = []content.Scanner{l.DirScanner()}
	}
	for _, s := range scanners {
		if err := l.discoverer.WalkScanner(ctx, s); err != nil {
			return discovery.Summary{}, fmt.Errorf("discover mods: %w", err)
		}
	}

	summary := l.discoverer.Finish()
	l.mu.Lock()
	l.summary = summary
	l.mu.Unlock()
	return summary, nil
}

// Transformer returns the pipeline, building it on first use. The side stripper is
// the first built-in, followed by WithBuiltin registrations.
func (l *Loader) Transformer() (*transformer.Transformer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.discovered {
		return nil, ErrNotDiscovered
	}
	if l.pipeline != nil {
		return l.pipeline, nil
	}

	mods := l.discoverer.Mods()
	p := transformer.New(mods, l.adapter, l.logger.WithPrefix("transformer"))

	locator := l.locator
	if locator == nil {
		locator = side.NewManifestLocator(mods)
	}
	p.RegisterTransformation(&side.Transformation{
		Side:     l.cfg.Side,
		Auditing: l.cfg.Auditing,
		Locator:  locator,
		Stripper: l.stripper,
		Logger:   l.logger.WithPrefix("side"),
	})
	for _, tr := range l.builtins {
		p.RegisterTransformation(tr)
	}

	l.pipeline = p
	return p, nil
}

// LoadClass runs the pipeline over one class. skipped reports that the class must
// not be defined; out is nil in that case.
func (l *Loader) LoadClass(name string, data []byte) (out []byte, skipped bool, err error) {
	p, err := l.Transformer()
	if err != nil {
		return nil, false, err
	}

	c := transformer.NewClassContainer(name, data)
	if err := p.Transform(c); err != nil {
		return nil, false, err
	}
	if c.Skip() {
		return nil, true, nil
	}
	out, err = c.Apply()
	if err != nil {
		return nil, false, &transformer.TransformError{Class: name, Transformation: "visitors", Err: err}
	}
	return out, false, nil
}

// Close releases containers opened by scanners created through DirScanner.
func (l *Loader) Close() error {
	l.mu.Lock()
	closers := l.closers
	l.closers = nil
	l.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
