// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
	"io"

	"github.com/felisloader/felis/pkg/content"
	"github.com/felisloader/felis/pkg/modmeta"
)

// Classify inspects one container without registering anything.
func (d *Discoverer) Classify(c content.Collection) Result {
	if _, ok := c.Resource(modmeta.LegacyManifestFileName); ok {
		d.logger.Warn("container ships a "+modmeta.LegacyManifestFileName+" assumed to use the old metadata schema, considering it a library",
			"container", c.Location())
		d.logger.Warn("to fix this, rename it to "+modmeta.ManifestFileName+" and declare schema version 1",
			"container", c.Location())
		d.addDiagnostic(Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeLegacyManifest,
			Message:  "legacy " + modmeta.LegacyManifestFileName + " found, treating container as a library",
			Path:     c.Location(),
		})
		return Result{Kind: NoMods}
	}

	resources := c.Resources(modmeta.ManifestFileName)
	if len(resources) == 0 {
		return Result{Kind: NoMods}
	}

	var (
		mods []*Mod
		errs []error
	)
	for _, r := range resources {
		data, err := readManifest(r)
		if err != nil {
			errs = append(errs, &Error{
				Container: c.Location(),
				Resource:  r.Location(),
				Code:      CodeManifestUnreadable,
				Message:   "problem occurred when reading mod candidate",
				Cause:     err,
			})
			continue
		}

		meta, err := modmeta.Parse(data)
		if err != nil {
			errs = append(errs, manifestError(c, r, err))
			continue
		}
		if err := meta.Version.Validate(); err != nil {
			d.logger.Warn("mod version is not a semantic version", "mod", meta.ModID, "version", meta.Version)
			d.addDiagnostic(Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeVersionNotSemver,
				Message:  fmt.Sprintf("mod %s declares version %q, which is not a semantic version", meta.ModID, meta.Version),
				Path:     r.Location(),
				Cause:    err,
			})
		}
		mods = append(mods, NewMod(c, meta))
	}

	return newResult(mods, errs)
}

// readManifest reads a manifest resource in full, bounded by MaxManifestSize.
func readManifest(r content.Resource) ([]byte, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, modmeta.MaxManifestSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > modmeta.MaxManifestSize {
		return nil, fmt.Errorf("manifest exceeds %d bytes", modmeta.MaxManifestSize)
	}
	return data, nil
}

func manifestError(c content.Collection, r content.Resource, err error) *Error {
	e := &Error{Container: c.Location(), Resource: r.Location(), Cause: err}
	switch {
	case errors.Is(err, modmeta.ErrSchema):
		e.Code = CodeManifestSchema
		e.Message = "must specify a valid schema version"
	case errors.Is(err, modmeta.ErrInvalid):
		e.Code = CodeManifestInvalid
		e.Message = "invalid " + modmeta.ManifestFileName
	default:
		e.Code = CodeManifestMalformed
		e.Message = "malformatted " + modmeta.ManifestFileName
	}
	return e
}
