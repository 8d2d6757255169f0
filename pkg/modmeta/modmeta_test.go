// SPDX-License-Identifier: MPL-2.0

package modmeta

import (
	"errors"
	"testing"
)

const validManifest = `
schema = 1
modid = "core"
name = "Core"
version = "1.2.0"
description = "The core mod."
authors = ["alice"]
homepage = "https://example.invalid"

[[transformations]]
name = "strip debug"
specifier = "native:debug-strip"
targets = ["game.Main", "game.Util", "game.Main"]

[sides]
"game.ClientRenderer" = "client"
`

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	meta, err := Parse([]byte(validManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if meta.ModID != "core" {
		t.Errorf("ModID = %q, want %q", meta.ModID, "core")
	}
	if meta.Version.Semver() == nil || meta.Version.Semver().Minor() != 2 {
		t.Errorf("Version.Semver() = %v, want 1.2.0", meta.Version.Semver())
	}
	if len(meta.Transformations) != 1 {
		t.Fatalf("len(Transformations) = %d, want 1", len(meta.Transformations))
	}
	targets := meta.Transformations[0].Targets
	if len(targets) != 2 || targets[0] != "game.Main" || targets[1] != "game.Util" {
		t.Errorf("Targets = %v, want [game.Main game.Util]", targets)
	}
	if meta.Sides["game.ClientRenderer"] != SideClient {
		t.Errorf("Sides[game.ClientRenderer] = %q, want %q", meta.Sides["game.ClientRenderer"], SideClient)
	}
	if meta.Extra["homepage"] != "https://example.invalid" {
		t.Errorf("Extra[homepage] = %v, want the unknown key preserved", meta.Extra["homepage"])
	}
}

func TestParse_MinimalDefaults(t *testing.T) {
	t.Parallel()

	meta, err := Parse([]byte("schema = 1\nmodid = \"core\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.Transformations != nil {
		t.Errorf("Transformations = %v, want nil", meta.Transformations)
	}
	if meta.Version != "" || meta.Version.Semver() != nil {
		t.Errorf("Version = %q, want empty", meta.Version)
	}
	if meta.Extra != nil {
		t.Errorf("Extra = %v, want nil", meta.Extra)
	}
	if meta.DisplayName() != "core" {
		t.Errorf("DisplayName() = %q, want %q", meta.DisplayName(), "core")
	}
}

func TestParse_SchemaGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "absent", data: "modid = \"core\"\n"},
		{name: "version 2", data: "schema = 2\nmodid = \"core\"\n"},
		{name: "version 0", data: "schema = 0\nmodid = \"core\"\n"},
		{name: "string", data: "schema = \"1\"\nmodid = \"core\"\n"},
		{name: "float", data: "schema = 1.0\nmodid = \"core\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrSchema) {
				t.Fatalf("Parse() error = %v, want ErrSchema", err)
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("Parse() error type = %T, want *SchemaError", err)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("schema = 1\nmodid = \"core"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse() error = %v, want ErrMalformed", err)
	}
}

func TestParse_TypeMismatchIsMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("schema = 1\nmodid = 7\n"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse() error = %v, want ErrMalformed", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  string
		field string
	}{
		{name: "missing modid", data: "schema = 1\n", field: "modid"},
		{name: "empty modid", data: "schema = 1\nmodid = \"\"\n", field: "modid"},
		{
			name:  "transformation without specifier",
			data:  "schema = 1\nmodid = \"core\"\n[[transformations]]\nname = \"x\"\ntargets = [\"a\"]\n",
			field: "transformations[0].specifier",
		},
		{
			name:  "unknown side",
			data:  "schema = 1\nmodid = \"core\"\n[sides]\n\"a.B\" = \"both\"\n",
			field: "sides.a.B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Parse() error = %v, want ErrInvalid", err)
			}
			var invalid *InvalidManifestError
			if !errors.As(err, &invalid) {
				t.Fatalf("Parse() error type = %T, want *InvalidManifestError", err)
			}
			if invalid.Field != tt.field {
				t.Errorf("Field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

func TestParse_FreeFormIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		modID   string
		version Version
	}{
		{name: "capitalised modid", data: "schema = 1\nmodid = \"Core\"\n", modID: "Core"},
		{name: "dotted modid", data: "schema = 1\nmodid = \"my.mod\"\n", modID: "my.mod"},
		{name: "leading digit", data: "schema = 1\nmodid = \"1up\"\n", modID: "1up"},
		{
			name:    "non-semver version",
			data:    "schema = 1\nmodid = \"core\"\nversion = \"r12\"\n",
			modID:   "core",
			version: "r12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			meta, err := Parse([]byte(tt.data))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if meta.ModID != tt.modID || meta.Version != tt.version {
				t.Errorf("Parse() = (%q, %q), want (%q, %q)", meta.ModID, meta.Version, tt.modID, tt.version)
			}
			if tt.version != "" && meta.Version.Semver() != nil {
				t.Errorf("Semver() = %v, want nil for %q", meta.Version.Semver(), tt.version)
			}
		})
	}
}

func TestVersion_Validate(t *testing.T) {
	t.Parallel()

	if err := Version("").Validate(); err != nil {
		t.Errorf("empty Version.Validate() = %v, want nil", err)
	}
	if err := Version("2.0.0-alpha.1").Validate(); err != nil {
		t.Errorf("Version(2.0.0-alpha.1).Validate() = %v, want nil", err)
	}
	if err := Version("latest").Validate(); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("Version(latest).Validate() = %v, want ErrInvalidVersion", err)
	}
}

func TestSide_Opposite(t *testing.T) {
	t.Parallel()

	if SideClient.Opposite() != SideServer || SideServer.Opposite() != SideClient {
		t.Error("Opposite() does not swap client and server")
	}
}
