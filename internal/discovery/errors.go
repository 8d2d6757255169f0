// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery is wrapped by every per-resource discovery Error.
	ErrDiscovery = errors.New("mod discovery error")
	// ErrModCollision is wrapped by CollisionError.
	ErrModCollision = errors.New("mod has already been registered")
)

type (
	// Error is a recoverable, resource-scoped discovery failure.
	Error struct {
		// Container is the location of the container being classified.
		Container string
		// Resource is the manifest location, empty for container-level errors.
		Resource string
		// Code mirrors the Diagnostic code reported for this error.
		Code string
		// Message describes the failure.
		Message string
		// Cause is the underlying error, if any.
		Cause error
	}

	// CollisionError is returned when two mods share a mod id. It is fatal to startup.
	CollisionError struct {
		ModID        string
		FirstSource  string
		SecondSource string
	}
)

// Error implements the error interface.
func (e *Error) Error() string {
	where := e.Container
	if e.Resource != "" {
		where = e.Resource
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Unwrap returns ErrDiscovery together with the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrDiscovery, e.Cause}
	}
	return []error{ErrDiscovery}
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf(
		"mod %s has already been registered:\n"+
			"  - %s\n"+
			"  - %s",
		e.ModID, e.FirstSource, e.SecondSource)
}

// Unwrap returns ErrModCollision so callers can use errors.Is for programmatic detection.
func (e *CollisionError) Unwrap() error { return ErrModCollision }
