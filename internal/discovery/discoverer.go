// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/felisloader/felis/pkg/content"
)

type (
	// Discoverer classifies containers and holds the registered mods and libraries.
	// Consider and RegisterMod are safe for concurrent use. Mods and libraries are
	// kept in scan order, not arrival order: a container offered as a
	// content.Sequenced collection is placed by its position, others by the order
	// in which Consider saw them.
	Discoverer struct {
		logger *log.Logger
		perf   *PerfCounter

		mu          sync.Mutex
		pass        int
		arrivals    int
		mods        map[string]*Mod
		order       []*Mod
		libs        []library
		diagnostics []Diagnostic
	}

	library struct {
		key seqKey
		c   content.Collection
	}

	// Summary is what Finish reports.
	Summary struct {
		Mods int
		Libs int
		Perf PerfSummary
	}
)

// New creates an empty Discoverer. A nil logger discards diagnostics output.
func New(logger *log.Logger) *Discoverer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Discoverer{
		logger: logger,
		perf:   NewPerfCounter(),
		mods:   make(map[string]*Mod),
	}
}

// RegisterMod adds mod unless another mod with the same id is already registered,
// in which case it returns a *CollisionError naming the earlier of the two in scan
// order first. The check and the insert are atomic.
func (d *Discoverer) RegisterMod(mod *Mod) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !mod.keyed {
		mod.key, mod.keyed = d.arrivalKeyLocked(), true
	}
	if existing, ok := d.mods[mod.ModID]; ok {
		first, second := existing, mod
		if mod.key.compare(existing.key) < 0 {
			first, second = mod, existing
		}
		return &CollisionError{
			ModID:        mod.ModID,
			FirstSource:  first.Source.Location(),
			SecondSource: second.Source.Location(),
		}
	}
	d.mods[mod.ModID] = mod
	i := insertPos(d.order, mod.key, func(m *Mod) seqKey { return m.key })
	d.order = slices.Insert(d.order, i, mod)
	return nil
}

// Consider classifies c and records the outcome. Only a mod id collision is
// returned as an error; manifest problems are reported as diagnostics.
func (d *Discoverer) Consider(c content.Collection) error {
	key := d.keyOf(c)
	result := d.Classify(c)

	switch result.Kind {
	case NoMods:
		d.mu.Lock()
		i := insertPos(d.libs, key, func(l library) seqKey { return l.key })
		d.libs = slices.Insert(d.libs, i, library{key: key, c: c})
		d.mu.Unlock()
		return nil
	case Success:
		return d.registerAll(key, result.Mods)
	case PartialMods:
		d.report(result.Errors)
		return d.registerAll(key, result.Mods)
	case Failure:
		// Dropped: neither a mod nor a library.
		d.report(result.Errors)
		return nil
	default:
		return fmt.Errorf("unknown discovery result kind %d for %s", result.Kind, c.Location())
	}
}

// WalkScanner asks scanner to offer every container it knows and considers each
// one, timing the calls for the Finish summary.
func (d *Discoverer) WalkScanner(ctx context.Context, scanner content.Scanner) error {
	d.logger.Info("mod discovery running", "scanner", fmt.Sprint(scanner))
	d.mu.Lock()
	d.pass++
	d.mu.Unlock()
	return scanner.Offer(ctx, func(c content.Collection) error {
		return d.perf.Timed(func() error { return d.Consider(c) })
	})
}

// Finish logs the discovery summary and returns it. It does not change state.
func (d *Discoverer) Finish() Summary {
	d.mu.Lock()
	s := Summary{Mods: len(d.order), Libs: len(d.libs)}
	d.mu.Unlock()
	s.Perf = d.perf.Summary()

	d.logger.Info(fmt.Sprintf("discovered %d mods in %.3fs, average discovery time was %.3fms",
		s.Mods, s.Perf.Total.Seconds(), float64(s.Perf.Average.Microseconds())/1000),
		"containers", s.Perf.Count, "libraries", s.Libs)
	return s
}

// Mods returns the registered mods in scan order.
func (d *Discoverer) Mods() []*Mod {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.order)
}

// Mod looks up a registered mod by id.
func (d *Discoverer) Mod(id string) (*Mod, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.mods[id]
	return m, ok
}

// Libs returns the containers classified as plain libraries, in scan order.
func (d *Discoverer) Libs() []content.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]content.Collection, len(d.libs))
	for i, lib := range d.libs {
		out[i] = lib.c
	}
	return out
}

// Diagnostics returns every warning and error reported so far.
func (d *Discoverer) Diagnostics() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.diagnostics)
}

// registerAll registers one container's mods at key, in manifest order.
func (d *Discoverer) registerAll(key seqKey, mods []*Mod) error {
	for i, m := range mods {
		m.key, m.keyed = seqKey{pass: key.pass, seq: key.seq, index: i}, true
		if err := d.RegisterMod(m); err != nil {
			return err
		}
	}
	return nil
}

// keyOf places c within the current pass.
func (d *Discoverer) keyOf(c content.Collection) seqKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sc, ok := c.(content.Sequenced); ok {
		if seq, ok := sc.Seq(); ok {
			return seqKey{pass: d.pass, seq: seq}
		}
	}
	return d.arrivalKeyLocked()
}

// arrivalKeyLocked places an unsequenced container after everything seen so far
// in the current pass. d.mu must be held.
func (d *Discoverer) arrivalKeyLocked() seqKey {
	d.arrivals++
	return seqKey{pass: d.pass, seq: d.arrivals}
}

// report logs each discovery error and keeps it as a diagnostic.
func (d *Discoverer) report(errs []error) {
	for _, err := range errs {
		diag := Diagnostic{Severity: SeverityError, Code: CodeManifestMalformed, Message: err.Error(), Cause: err}
		if de, ok := err.(*Error); ok {
			diag.Code = de.Code
			diag.Path = de.Resource
		}
		d.logger.Error("mod discovery failed", "err", err)
		d.addDiagnostic(diag)
	}
}

func (d *Discoverer) addDiagnostic(diag Diagnostic) {
	d.mu.Lock()
	d.diagnostics = append(d.diagnostics, diag)
	d.mu.Unlock()
}

// insertPos returns where an element keyed k belongs in s, which is ordered by
// key. Equal keys keep their arrival order.
func insertPos[E any](s []E, k seqKey, keyOf func(E) seqKey) int {
	i, _ := slices.BinarySearchFunc(s, k, func(e E, k seqKey) int {
		return cmp.Or(keyOf(e).compare(k), -1)
	})
	return i
}
