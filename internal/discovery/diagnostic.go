// SPDX-License-Identifier: MPL-2.0

package discovery

const (
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal discovery error diagnostic.
	SeverityError Severity = "error"

	// CodeLegacyManifest flags a container that still ships mods.toml.
	CodeLegacyManifest = "legacy_manifest"
	// CodeManifestUnreadable flags a manifest resource that could not be read.
	CodeManifestUnreadable = "manifest_unreadable"
	// CodeManifestMalformed flags a manifest that is not valid TOML or does not decode.
	CodeManifestMalformed = "manifest_malformed"
	// CodeManifestSchema flags a manifest with a missing or unsupported schema version.
	CodeManifestSchema = "manifest_schema"
	// CodeManifestInvalid flags a manifest that decoded but violates a field rule.
	CodeManifestInvalid = "manifest_invalid"
	// CodeVersionNotSemver flags a loaded mod whose version does not parse as semver.
	CodeVersionNotSemver = "version_not_semver"
)

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// Diagnostic represents a structured discovery diagnostic that is returned
	// to callers (rather than written to stderr) for consistent rendering policy.
	Diagnostic struct {
		// Severity is the diagnostic level (warning or error).
		Severity Severity
		// Code is a machine-readable identifier (e.g., "manifest_schema").
		Code string
		// Message is the human-readable description.
		Message string
		// Path is the container or resource location the diagnostic refers to.
		Path string
		// Cause is the underlying error (optional, for programmatic inspection).
		Cause error
	}
)
