// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user documents against embedded CUE schemas and formats
// CUE errors with JSON-style field paths.
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	values, err := cueutil.DecodeMap(schema, "#Config", data, cueutil.WithFilename(path))
package cueutil
