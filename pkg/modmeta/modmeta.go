// SPDX-License-Identifier: MPL-2.0

package modmeta

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ManifestFileName is the canonical manifest resource name at a container root.
	ManifestFileName = "felis.mod.toml"

	// LegacyManifestFileName is the pre-schema manifest name. Containers carrying it
	// are flagged and treated as libraries; the file is never parsed.
	LegacyManifestFileName = "mods.toml"

	// SchemaVersion is the only manifest schema this loader understands.
	SchemaVersion int64 = 1

	// MaxManifestSize bounds how much of a manifest resource is read.
	MaxManifestSize = 1 << 20

	// SideClient marks classes that only exist on the client.
	SideClient Side = "client"
	// SideServer marks classes that only exist on the dedicated server.
	SideServer Side = "server"
)

var (
	// ErrMalformed is wrapped by every error caused by unparsable TOML.
	ErrMalformed = errors.New("malformed manifest")
	// ErrSchema is wrapped by SchemaError.
	ErrSchema = errors.New("unsupported manifest schema")
	// ErrInvalid is wrapped by InvalidManifestError.
	ErrInvalid = errors.New("invalid manifest")

	knownKeys = map[string]bool{
		"schema":          true,
		"modid":           true,
		"name":            true,
		"version":         true,
		"description":     true,
		"authors":         true,
		"transformations": true,
		"sides":           true,
	}
)

type (
	// Side names the execution environment a class belongs to.
	Side string

	// TransformationDecl is one [[transformations]] entry of a manifest.
	TransformationDecl struct {
		// Name is the human-readable name used in diagnostics.
		Name string `toml:"name"`
		// Specifier is handed to the language adapters to build the instance.
		Specifier string `toml:"specifier"`
		// Targets are the class names this transformation applies to (a set).
		Targets []string `toml:"targets"`
	}

	// Metadata is the decoded content of a felis.mod.toml file.
	Metadata struct {
		Schema          int64                `toml:"schema"`
		ModID           string               `toml:"modid"`
		Name            string               `toml:"name"`
		Version         Version              `toml:"version"`
		Description     string               `toml:"description"`
		Authors         []string             `toml:"authors"`
		Transformations []TransformationDecl `toml:"transformations"`
		// Sides binds whole classes to a single environment.
		Sides map[string]Side `toml:"sides"`

		// Extra holds top-level keys this loader does not recognise.
		Extra map[string]any `toml:"-"`
	}

	// SchemaError is returned when the schema field is absent or not SchemaVersion.
	SchemaError struct {
		// Found is the raw schema value, nil when the key was absent.
		Found any
	}

	// InvalidManifestError is returned when a manifest decodes but violates a field rule.
	InvalidManifestError struct {
		Field   string
		Message string
		Cause   error
	}
)

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Found == nil {
		return fmt.Sprintf("missing schema version, available versions are: %d", SchemaVersion)
	}
	return fmt.Sprintf("schema version %v is not supported, available versions are: %d", e.Found, SchemaVersion)
}

// Unwrap returns ErrSchema so callers can use errors.Is for programmatic detection.
func (e *SchemaError) Unwrap() error { return ErrSchema }

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalid together with the underlying cause.
func (e *InvalidManifestError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalid, e.Cause}
	}
	return []error{ErrInvalid}
}

// ParseTable parses raw manifest bytes into a generic TOML table.
func ParseTable(data []byte) (map[string]any, error) {
	var table map[string]any
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return table, nil
}

// CheckSchema enforces the schema gate on a parsed table. Values are never coerced:
// a string "1" or a float 1.0 is rejected like any other version.
func CheckSchema(table map[string]any) error {
	raw, ok := table["schema"]
	if !ok {
		return &SchemaError{}
	}
	if v, isInt := raw.(int64); isInt && v == SchemaVersion {
		return nil
	}
	return &SchemaError{Found: raw}
}

// Parse runs the full manifest pipeline: TOML table, schema gate, typed decode and
// field validation.
func Parse(data []byte) (*Metadata, error) {
	table, err := ParseTable(data)
	if err != nil {
		return nil, err
	}
	if err := CheckSchema(table); err != nil {
		return nil, err
	}
	return decode(data, table)
}

func decode(data []byte, table map[string]any) (*Metadata, error) {
	var meta Metadata
	if err := toml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	for key, value := range table {
		if knownKeys[key] {
			continue
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]any)
		}
		meta.Extra[key] = value
	}

	for i := range meta.Transformations {
		meta.Transformations[i].Targets = dedupe(meta.Transformations[i].Targets)
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Validate checks field-level rules that TOML typing cannot express. The mod id is
// any non-empty string and the version is free-form; see Version.Validate.
func (m *Metadata) Validate() error {
	if m.ModID == "" {
		return &InvalidManifestError{Field: "modid", Message: "is required"}
	}
	for i, t := range m.Transformations {
		field := fmt.Sprintf("transformations[%d]", i)
		if t.Name == "" {
			return &InvalidManifestError{Field: field + ".name", Message: "is required"}
		}
		if t.Specifier == "" {
			return &InvalidManifestError{Field: field + ".specifier", Message: "is required"}
		}
	}
	for class, side := range m.Sides {
		if side != SideClient && side != SideServer {
			return &InvalidManifestError{
				Field:   "sides." + class,
				Message: fmt.Sprintf("%q is not one of %q, %q", side, SideClient, SideServer),
			}
		}
	}
	return nil
}

// DisplayName returns Name, falling back to ModID.
func (m *Metadata) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ModID
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideClient {
		return SideServer
	}
	return SideClient
}

// dedupe removes repeated targets, keeping first occurrences in order.
func dedupe(targets []string) []string {
	if len(targets) < 2 {
		return targets
	}
	seen := make(map[string]bool, len(targets))
	out := targets[:0]
	for _, t := range targets {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
