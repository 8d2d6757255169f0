// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"sync"
	"time"
)

type (
	// PerfCounter accumulates durations of timed calls. Safe for concurrent use.
	PerfCounter struct {
		mu      sync.Mutex
		count   int
		total   time.Duration
		nowFunc func() time.Time
	}

	// PerfSummary is a snapshot of a PerfCounter.
	PerfSummary struct {
		Count   int
		Total   time.Duration
		Average time.Duration
	}
)

// NewPerfCounter creates an empty counter.
func NewPerfCounter() *PerfCounter {
	return &PerfCounter{nowFunc: time.Now}
}

// Timed runs fn and records how long it took, whether or not it failed.
func (p *PerfCounter) Timed(fn func() error) error {
	start := p.nowFunc()
	err := fn()
	elapsed := p.nowFunc().Sub(start)

	p.mu.Lock()
	p.count++
	p.total += elapsed
	p.mu.Unlock()
	return err
}

// Summary returns the recorded totals.
func (p *PerfCounter) Summary() PerfSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PerfSummary{Count: p.count, Total: p.total}
	if p.count > 0 {
		s.Average = p.total / time.Duration(p.count)
	}
	return s
}
