// SPDX-License-Identifier: MPL-2.0

// Package content provides the content containers mods are discovered in and the
// scanners that enumerate them.
//
// A Collection is any root of named resources: a directory, a zip/jar archive or,
// in tests, an in-memory fs.FS. Resource names are slash-separated paths relative
// to the root.
package content

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type (
	// Resource is one named entry of a Collection.
	Resource interface {
		// Location identifies the resource for diagnostics.
		Location() string
		// Open returns a fresh stream over the resource bytes.
		Open() (io.ReadCloser, error)
	}

	// Collection is an enumerable source of named resources.
	Collection interface {
		// Location is the identity of the collection.
		Location() string
		// Resource returns the first resource with the given name.
		Resource(name string) (Resource, bool)
		// Resources returns every resource with the given name, in root order.
		Resources(name string) []Resource
	}

	// Sequenced is implemented by collections that know their position among the
	// containers offered by one scan. Consumers use it to order results that were
	// produced concurrently.
	Sequenced interface {
		Seq() (int, bool)
	}

	// FSCollection exposes an fs.FS as a Collection.
	FSCollection struct {
		location  string
		fsys      fs.FS
		closer    io.Closer
		seq       int
		sequenced bool
	}

	// Layered joins several collections under a single identity so that one
	// container may hold several resources of the same name.
	Layered struct {
		location string
		parts    []Collection
	}

	fsResource struct {
		location string
		name     string
		fsys     fs.FS
	}
)

// NewFS wraps fsys as a Collection identified by location.
func NewFS(location string, fsys fs.FS) *FSCollection {
	return &FSCollection{location: location, fsys: fsys}
}

// OpenDir opens a directory as a Collection.
func OpenDir(dir string) (*FSCollection, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open directory collection: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open directory collection: %s is not a directory", abs)
	}
	return NewFS(abs, os.DirFS(abs)), nil
}

// OpenZip opens a zip or jar archive as a Collection. Callers own the returned
// collection and should Close it once no mod references it anymore.
func OpenZip(file string) (*FSCollection, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", file, err)
	}
	rc, err := zip.OpenReader(abs)
	if err != nil {
		return nil, fmt.Errorf("open archive collection %s: %w", abs, err)
	}
	c := NewFS(abs, rc)
	c.closer = rc
	return c, nil
}

// Seq returns the position DirScanner assigned to c, if any.
func (c *FSCollection) Seq() (int, bool) { return c.seq, c.sequenced }

// Location implements Collection.
func (c *FSCollection) Location() string { return c.location }

// Resource implements Collection.
func (c *FSCollection) Resource(name string) (Resource, bool) {
	name = cleanName(name)
	if !fs.ValidPath(name) {
		return nil, false
	}
	info, err := fs.Stat(c.fsys, name)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return &fsResource{location: c.location + "!/" + name, name: name, fsys: c.fsys}, true
}

// Resources implements Collection. A single fs.FS root holds at most one entry
// per name.
func (c *FSCollection) Resources(name string) []Resource {
	if r, ok := c.Resource(name); ok {
		return []Resource{r}
	}
	return nil
}

// Close releases the underlying archive, if any.
func (c *FSCollection) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// String returns the collection location.
func (c *FSCollection) String() string { return c.location }

// NewLayered joins parts under location. Lookups walk parts in order.
func NewLayered(location string, parts ...Collection) *Layered {
	return &Layered{location: location, parts: parts}
}

// Location implements Collection.
func (l *Layered) Location() string { return l.location }

// Resource implements Collection.
func (l *Layered) Resource(name string) (Resource, bool) {
	for _, p := range l.parts {
		if r, ok := p.Resource(name); ok {
			return r, true
		}
	}
	return nil, false
}

// Resources implements Collection.
func (l *Layered) Resources(name string) []Resource {
	var out []Resource
	for _, p := range l.parts {
		out = append(out, p.Resources(name)...)
	}
	return out
}

// Close closes every closable part and joins their errors.
func (l *Layered) Close() error {
	var errs []error
	for _, p := range l.parts {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// String returns the collection location.
func (l *Layered) String() string { return l.location }

func (r *fsResource) Location() string { return r.location }

func (r *fsResource) Open() (io.ReadCloser, error) {
	f, err := r.fsys.Open(r.name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.location, err)
	}
	return f, nil
}

func (r *fsResource) String() string { return r.location }

func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
