// SPDX-License-Identifier: MPL-2.0

// Package modmeta defines the felis.mod.toml manifest model and its schema gate.
//
// A manifest is only decoded when its top-level schema field is exactly
// SchemaVersion. Unknown keys are tolerated and collected into Metadata.Extra so
// newer manifests keep loading on older loaders; absent optional keys decode to
// their zero values.
package modmeta
