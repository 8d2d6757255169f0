// SPDX-License-Identifier: MPL-2.0

package modmeta

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid mod version")

type (
	// Version is the optional, free-form version a manifest declares for its mod.
	// Most mods use semver; Semver parses it when they do.
	Version string

	// InvalidVersionError is returned when a Version is not a semantic version.
	InvalidVersionError struct {
		Value Version
		Cause error
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid mod version %q: %v", e.Value, e.Cause)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Validate reports whether the version parses as semver. The empty version is valid.
// Manifests with other versions still load; discovery reports them as warnings.
func (v Version) Validate() error {
	if v == "" {
		return nil
	}
	if _, err := semver.NewVersion(string(v)); err != nil {
		return &InvalidVersionError{Value: v, Cause: err}
	}
	return nil
}

// Semver returns the parsed version, or nil when the manifest omitted it or it is
// not semver.
func (v Version) Semver() *semver.Version {
	if v == "" {
		return nil
	}
	parsed, err := semver.NewVersion(string(v))
	if err != nil {
		return nil
	}
	return parsed
}

// String returns the string representation of the Version.
func (v Version) String() string { return string(v) }
