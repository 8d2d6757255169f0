// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the felis command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/felisloader/felis/internal/config"
	"github.com/felisloader/felis/internal/issue"
)

const (
	exitFailure     = 1
	exitDiagnostics = 2
	exitNotFound    = 3
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App carries the services and output streams shared by all commands.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
	}

	rootFlagValues struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App writing to the given streams. Nil streams default to the
// process stdout and stderr.
func NewApp(stdout, stderr io.Writer) *App {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &App{Config: config.NewProvider(), stdout: stdout, stderr: stderr}
}

func newRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	root := &cobra.Command{
		Use:   "felis",
		Short: "Discover mods and run their class transformations",
		Long: TitleStyle.Render("felis") + SubtitleStyle.Render(" - mod discovery and class transformation") + `

felis scans mod directories for containers (directories, .zip and .jar files),
registers every container carrying a felis.mod.toml manifest as a mod and
treats the rest as libraries. Transformations declared by mods are resolved
through language adapters and applied to classes as they load.

` + SubtitleStyle.Render("Examples:") + `
  felis discover                 Scan the configured mod directories
  felis discover ./mods --watch  Rescan whenever ./mods changes
  felis mod info core            Show the manifest of mod "core"
  felis transform game.Main Main.class -o out.class
  felis config show              Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/felis/config.cue)")

	root.AddCommand(
		newDiscoverCommand(app, flags),
		newModCommand(app, flags),
		newTransformCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command and exits with the code carried by an ExitError.
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
}

// loadConfig loads the configuration, explaining failures on stderr.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		if _, ok := issue.IssueOf(err); !ok {
			a.explain(issue.ConfigLoadFailedId, flags)
		} else {
			a.explainErr(err, flags)
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the CLI logger. --verbose lowers the level to debug.
func (a *App) newLogger(cfg *config.Config, flags *rootFlagValues) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "felis"})
	level, err := cfg.LogLevel.Level()
	if err != nil {
		level = log.InfoLevel
	}
	if flags.verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// explain renders a catalogued issue on stderr in verbose mode.
func (a *App) explain(id issue.Id, flags *rootFlagValues) {
	if !flags.verbose {
		return
	}
	is := issue.Get(id)
	if is == nil {
		return
	}
	rendered, err := is.Render("")
	if err != nil {
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// explainErr explains the catalogued issue err is tagged with, if any.
func (a *App) explainErr(err error, flags *rootFlagValues) {
	if id, ok := issue.IssueOf(err); ok {
		a.explain(id, flags)
	}
}

// formatErrorForDisplay uses ActionableError formatting when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
