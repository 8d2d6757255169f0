// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"

	"github.com/felisloader/felis/pkg/content"
	"github.com/felisloader/felis/pkg/modmeta"
)

const (
	// NoMods means the container has no manifest and is treated as a library.
	NoMods ResultKind = iota
	// Success means every manifest in the container parsed.
	Success
	// PartialMods means some manifests parsed and some failed.
	PartialMods
	// Failure means manifests were present but none parsed.
	Failure
)

type (
	// ResultKind tags a Result.
	ResultKind int

	// Result is the outcome of classifying one container. Mods is populated for
	// Success and PartialMods; Errors for PartialMods and Failure.
	Result struct {
		Kind   ResultKind
		Mods   []*Mod
		Errors []error
	}

	// Mod is a validated manifest together with the container it came from.
	Mod struct {
		ModID    string
		Metadata *modmeta.Metadata
		Source   content.Collection

		key   seqKey
		keyed bool
	}

	// seqKey places a mod or library by scanner pass, container position within
	// the pass and manifest position within the container.
	seqKey struct {
		pass, seq, index int
	}
)

func (k seqKey) compare(o seqKey) int {
	return cmp.Or(
		cmp.Compare(k.pass, o.pass),
		cmp.Compare(k.seq, o.seq),
		cmp.Compare(k.index, o.index),
	)
}

// String returns a human-readable kind name.
func (k ResultKind) String() string {
	switch k {
	case NoMods:
		return "no mods"
	case Success:
		return "success"
	case PartialMods:
		return "partial mods"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// NewMod creates a Mod from decoded metadata.
func NewMod(source content.Collection, meta *modmeta.Metadata) *Mod {
	return &Mod{ModID: meta.ModID, Metadata: meta, Source: source}
}

// Transformations returns the transformations the mod declares.
func (m *Mod) Transformations() []modmeta.TransformationDecl {
	return m.Metadata.Transformations
}

// newResult aggregates one container's outcome.
func newResult(mods []*Mod, errs []error) Result {
	switch {
	case len(errs) == 0:
		return Result{Kind: Success, Mods: mods}
	case len(mods) == 0:
		return Result{Kind: Failure, Errors: errs}
	default:
		return Result{Kind: PartialMods, Mods: mods, Errors: errs}
	}
}
