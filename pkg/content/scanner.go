// SPDX-License-Identifier: MPL-2.0

package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the scan parallelism used when DirScanner.Workers is not positive.
const DefaultWorkers = 4

// DefaultPatterns select the archive files a DirScanner offers. Directories are
// always offered.
var DefaultPatterns = []string{"*.zip", "*.jar"}

type (
	// Scanner enumerates containers. Offer invokes fn once per container and may
	// do so from several goroutines at once; such scanners offer collections that
	// implement Sequenced. The first error returned by fn stops the scan and is
	// returned.
	Scanner interface {
		Offer(ctx context.Context, fn func(Collection) error) error
	}

	// DirScanner offers the immediate entries of each root directory: every
	// non-hidden subdirectory and every file whose name matches Patterns.
	DirScanner struct {
		// Roots are the directories to scan, in order.
		Roots []string
		// Patterns are doublestar patterns matched against entry names.
		// Empty means DefaultPatterns.
		Patterns []string
		// Workers bounds concurrent callback invocations.
		Workers int
		// Skipped is told about entries that could not be opened (optional).
		Skipped func(path string, err error)

		mu      sync.Mutex
		closers []io.Closer
	}
)

// ErrNoRoots is returned by Offer when the scanner has nothing to scan.
var ErrNoRoots = errors.New("scanner has no roots")

// NewDirScanner creates a DirScanner over roots with default patterns.
func NewDirScanner(workers int, roots ...string) *DirScanner {
	return &DirScanner{Roots: roots, Workers: workers}
}

// Offer implements Scanner.
func (s *DirScanner) Offer(ctx context.Context, fn func(Collection) error) error {
	if len(s.Roots) == 0 {
		return ErrNoRoots
	}

	candidates, err := s.candidates()
	if err != nil {
		return err
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, candidate := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			c, openErr := s.open(candidate, i)
			if openErr != nil {
				if s.Skipped != nil {
					s.Skipped(candidate, openErr)
				}
				return nil
			}
			return fn(c)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close releases every archive this scanner opened.
func (s *DirScanner) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// String names the scanner in diagnostics.
func (s *DirScanner) String() string {
	return "dir scanner [" + strings.Join(s.Roots, ", ") + "]"
}

// candidates lists the paths to offer, root by root, in directory order.
func (s *DirScanner) candidates() ([]string, error) {
	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid container pattern %q", pat)
		}
	}

	var out []string
	for _, root := range s.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read mod root %s: %w", root, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if entry.IsDir() || matchesAny(patterns, name) {
				out = append(out, filepath.Join(root, name))
			}
		}
	}
	return out, nil
}

// open opens the candidate at position seq of the candidate list.
func (s *DirScanner) open(path string, seq int) (*FSCollection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		c, dirErr := OpenDir(path)
		if dirErr != nil {
			return nil, dirErr
		}
		c.seq, c.sequenced = seq, true
		return c, nil
	}
	c, err := OpenZip(path)
	if err != nil {
		return nil, err
	}
	c.seq, c.sequenced = seq, true
	s.mu.Lock()
	s.closers = append(s.closers, c)
	s.mu.Unlock()
	return c, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, name); err == nil && matched {
			return true
		}
	}
	return false
}

// Static is a Scanner over a fixed list of collections, offered sequentially.
type Static []Collection

// Offer implements Scanner.
func (s Static) Offer(ctx context.Context, fn func(Collection) error) error {
	for _, c := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
