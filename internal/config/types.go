// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/felisloader/felis/pkg/content"
	"github.com/felisloader/felis/pkg/modmeta"
)

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultModDir is scanned when no directory is configured.
	DefaultModDir = "mods"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// Config is the effective felis configuration.
	Config struct {
		// ModDirs are the directories scanned for mod containers.
		ModDirs []string `json:"mod_dirs" mapstructure:"mod_dirs"`
		// ContainerPatterns select archive files inside a mod directory.
		ContainerPatterns []string `json:"container_patterns" mapstructure:"container_patterns"`
		// Side is the environment classes are loaded for.
		Side modmeta.Side `json:"side" mapstructure:"side"`
		// Auditing makes side stripping log what it would remove instead of removing it.
		Auditing bool `json:"auditing" mapstructure:"auditing"`
		// Workers bounds concurrent container classification.
		Workers int `json:"workers" mapstructure:"workers"`
		// LogLevel filters CLI log output.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}

	// InvalidConfigError is returned when a resolved value breaks a rule. Environment
	// overrides bypass the CUE schema, so the rules are checked again after merging.
	InvalidConfigError struct {
		Field string
		Value any
		Cause error
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Cause)
	}
	return fmt.Sprintf("invalid %s %v", e.Field, e.Value)
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the configuration used when no file or environment override exists.
func DefaultConfig() *Config {
	return &Config{
		ModDirs:           []string{DefaultModDir},
		ContainerPatterns: slices.Clone(content.DefaultPatterns),
		Side:              modmeta.SideClient,
		Workers:           content.DefaultWorkers,
		LogLevel:          LogLevelInfo,
	}
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.Side != modmeta.SideClient && c.Side != modmeta.SideServer {
		return &InvalidConfigError{Field: "side", Value: c.Side}
	}
	if c.Workers < 1 {
		return &InvalidConfigError{Field: "workers", Value: c.Workers}
	}
	if _, err := c.LogLevel.Level(); err != nil {
		return &InvalidConfigError{Field: "log_level", Value: c.LogLevel, Cause: err}
	}
	for _, dir := range c.ModDirs {
		if dir == "" {
			return &InvalidConfigError{Field: "mod_dirs", Value: `""`}
		}
	}
	for _, p := range c.ContainerPatterns {
		if !doublestar.ValidatePattern(p) {
			return &InvalidConfigError{Field: "container_patterns", Value: p}
		}
	}
	return nil
}

// Level converts l into a charmbracelet/log level.
func (l LogLevel) Level() (log.Level, error) {
	return log.ParseLevel(string(l))
}
