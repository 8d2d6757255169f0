// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs mod discovery when mod directories change.
//
// Events are reduced to the container they affect: the immediate entry of a mod
// root that a content.DirScanner would offer, e.g. mods/core.jar for a rewritten
// archive or mods/exploded for any file below an exploded mod directory. Changes
// are coalesced over a debounce window so that copying a jar, which produces a
// burst of create and write events, triggers one rediscovery.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/felisloader/felis/pkg/content"
)

const defaultDebounce = 500 * time.Millisecond

var (
	// ErrNoRoots is returned by New when none of the configured roots exists.
	ErrNoRoots = errors.New("watch: no existing root directory")

	// defaultIgnores are matched against root-relative paths and never reported.
	defaultIgnores = []string{
		"**/.git/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
		"**/*.part",
		"**/*.crdownload",
		"**/*.tmp",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the mod directories to watch recursively. Missing roots are skipped.
		Roots []string
		// Patterns select archive containers by file name, as in content.DirScanner.
		// Empty means content.DefaultPatterns. Directories always count.
		Patterns []string
		// Ignore extends the built-in ignore list.
		Ignore []string
		// Debounce is the quiet period; zero or negative means 500ms.
		Debounce time.Duration
		// OnChange receives the sorted absolute paths of the containers that changed.
		OnChange func(ctx context.Context, containers []string) error
		Logger   *log.Logger
	}

	// Watcher fires a debounced callback when containers under its roots change.
	// Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		logger   *log.Logger
		roots    []string
		patterns []string
		ignores  []string
		debounce time.Duration
		started  atomic.Bool
	}

	// batch collects changed containers until its timer fires.
	batch struct {
		mu      sync.Mutex
		pending map[string]struct{}
		timer   *time.Timer
	}
)

// Validate checks that every pattern is a valid doublestar glob.
func (c Config) Validate() error {
	for _, p := range c.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("watch: invalid container pattern %q", p)
		}
	}
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("watch: invalid ignore pattern %q", p)
		}
	}
	return nil
}

// New resolves the roots and registers them and their subdirectories with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	roots, err := existingRoots(cfg.Roots, logger)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		logger:   logger,
		roots:    roots,
		patterns: cfg.Patterns,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: cfg.Debounce,
	}
	if len(w.patterns) == 0 {
		w.patterns = content.DefaultPatterns
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}

	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("close after init failure", "err", closeErr)
			}
			return nil, err
		}
	}
	return w, nil
}

// existingRoots returns the absolute, deduplicated roots that are directories.
func existingRoots(dirs []string, logger *log.Logger) ([]string, error) {
	var roots []string
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve root %q: %w", dir, err)
		}
		if info, statErr := os.Stat(abs); statErr != nil || !info.IsDir() {
			logger.Warn("skipping missing mod directory", "dir", dir)
			continue
		}
		if !slices.Contains(roots, abs) {
			roots = append(roots, abs)
		}
	}
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	return roots, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an error
// when fsnotify fails in a way the watcher cannot recover from. Callbacks never
// overlap; containers changing during a callback are delivered by a later one.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	b := &batch{pending: make(map[string]struct{})}
	var running atomic.Bool

	var fire func()
	fire = func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("rediscovery still running, rescheduling")
			b.schedule(w.debounce, fire)
			return
		}
		defer running.Store(false)

		containers := b.take()
		if len(containers) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, containers); err != nil {
			w.logger.Error("rediscovery failed", "err", err)
		}
	}

	defer func() {
		b.stop()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			removed := evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)
			if container, ok := w.containerOf(evt.Name, removed); ok {
				b.add(container)
				b.schedule(w.debounce, fire)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// containerOf maps an event path to the container it belongs to. A top-level
// file counts when it matches the container patterns; a removed top-level entry
// always counts since its kind can no longer be checked.
func (w *Watcher) containerOf(path string, removed bool) (string, bool) {
	root, rel, ok := w.relative(path)
	if !ok || rel == "." || w.isIgnored(rel) {
		return "", false
	}
	entry, nested, _ := strings.Cut(rel, "/")
	if strings.HasPrefix(entry, ".") {
		return "", false
	}

	container := filepath.Join(root, entry)
	switch {
	case nested != "", removed, matchAny(w.patterns, entry):
		return container, true
	}
	if info, err := os.Stat(container); err == nil && info.IsDir() {
		return container, true
	}
	return "", false
}

// addTree registers root and every non-ignored directory below it. Unreadable
// directories are skipped.
func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", walkErr)
			return nil //nolint:nilerr // unreadable directories are not watched
		}
		if !d.IsDir() {
			return nil
		}
		if _, rel, ok := w.relative(path); ok && rel != "." && w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", root, err)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup, such as a
// freshly extracted exploded mod.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("watch new directory", "path", path, "err", err)
	}
}

// relative finds the root containing path and returns the slash-separated path
// relative to it.
func (w *Watcher) relative(path string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		p, err := filepath.Rel(r, path)
		if err == nil && p != ".." && !strings.HasPrefix(p, ".."+string(filepath.Separator)) {
			return r, filepath.ToSlash(p), true
		}
	}
	return "", "", false
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (b *batch) add(container string) {
	b.mu.Lock()
	b.pending[container] = struct{}{}
	b.mu.Unlock()
}

// schedule (re)arms the timer so fire runs after d without further calls.
func (b *batch) schedule(d time.Duration, fire func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		b.timer = time.AfterFunc(d, fire)
		return
	}
	b.timer.Reset(d)
}

// take drains the batch, returning the containers in sorted order.
func (b *batch) take() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Sorted(maps.Keys(b.pending))
	clear(b.pending)
	return out
}

func (b *batch) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
