// SPDX-License-Identifier: MPL-2.0

// Package config loads felis configuration with Viper, using CUE as the file format.
//
// The file is read from $XDG_CONFIG_HOME/felis/config.cue (~/Library/Application Support
// on macOS, %APPDATA% on Windows), falling back to felis.cue in the working directory.
// It is validated against the embedded config_schema.cue before being merged over the
// defaults. FELIS_* environment variables override both.
package config
