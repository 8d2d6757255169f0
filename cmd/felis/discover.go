// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/felisloader/felis/internal/config"
	"github.com/felisloader/felis/internal/discovery"
	"github.com/felisloader/felis/internal/issue"
	"github.com/felisloader/felis/internal/loader"
	"github.com/felisloader/felis/internal/watch"
)

func newDiscoverCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var (
		watchMode bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "discover [dirs...]",
		Short: "Scan mod directories and list mods, libraries and diagnostics",
		Long: `Scan mod directories and list mods, libraries and diagnostics.

Directories default to the configured mod_dirs. With --watch, discovery runs
again in a fresh context whenever a file under the directories changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			dirs, err := app.modDirs(cfg, flags, args)
			if err != nil {
				return err
			}
			logger := app.newLogger(cfg, flags)

			run := func(ctx context.Context) error {
				return app.runDiscover(ctx, cfg, flags, logger, dirs, strict)
			}
			if !watchMode {
				return run(cmd.Context())
			}
			return app.watchDiscover(cmd.Context(), logger, dirs, cfg.ContainerPatterns, run)
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "rerun discovery when mod directories change")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 2 when any container fails to classify")
	return cmd
}

// modDirs returns args or the configured directories, failing when none exists.
func (a *App) modDirs(cfg *config.Config, flags *rootFlagValues, args []string) ([]string, error) {
	dirs := args
	if len(dirs) == 0 {
		dirs = cfg.ModDirs
	}
	for _, d := range dirs {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			return dirs, nil
		}
	}
	err := &ExitError{
		Code: exitNotFound,
		Err: issue.NewErrorContext().
			WithOperation("discover mods").
			WithResource(fmt.Sprint(dirs)).
			WithIssue(issue.ModDirNotFoundId).
			WithSuggestion("Create the directory or pass existing directories as arguments").
			Wrap(os.ErrNotExist).
			BuildError(),
	}
	a.explainErr(err, flags)
	return nil, err
}

// discover builds a loader over dirs and runs discovery. The caller closes the loader.
func (a *App) discover(ctx context.Context, cfg *config.Config, flags *rootFlagValues, logger *log.Logger, dirs []string) (*loader.Loader, error) {
	l := loader.New(cfg, loader.WithLogger(logger), loader.WithPluginDir(""))
	if _, err := l.Discover(ctx, l.DirScanner(dirs...)); err != nil {
		_ = l.Close()
		if errors.Is(err, discovery.ErrModCollision) {
			a.explain(issue.ModCollisionId, flags)
		}
		return nil, err
	}
	return l, nil
}

func (a *App) runDiscover(ctx context.Context, cfg *config.Config, flags *rootFlagValues, logger *log.Logger, dirs []string, strict bool) error {
	l, err := a.discover(ctx, cfg, flags, logger, dirs)
	if err != nil {
		return err
	}
	defer l.Close()

	d := l.Discoverer()
	printDiscovery(a.stdout, d)

	failed := 0
	for _, diag := range d.Diagnostics() {
		if diag.Severity == discovery.SeverityError {
			failed++
		}
	}
	if len(d.Diagnostics()) > 0 {
		a.explain(diagnosticIssue(d.Diagnostics()), flags)
	}
	if strict && failed > 0 {
		return &ExitError{Code: exitDiagnostics, Err: fmt.Errorf("%d containers failed to classify", failed)}
	}
	return nil
}

func (a *App) watchDiscover(ctx context.Context, logger *log.Logger, dirs, patterns []string, run func(context.Context) error) error {
	w, err := watch.New(watch.Config{
		Roots:    dirs,
		Patterns: patterns,
		Logger:   logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, containers []string) error {
			logger.Info("mod containers changed, rediscovering", "containers", containers)
			return run(ctx)
		},
	})
	if err != nil {
		return err
	}

	if err := run(ctx); err != nil {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, false))
	}
	logger.Info("watching for changes", "dirs", w.Roots())
	return w.Run(ctx)
}

func printDiscovery(w io.Writer, d *discovery.Discoverer) {
	mods := d.Mods()
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Mods (%d)", len(mods))))
	if len(mods) == 0 {
		fmt.Fprintln(w, "  "+SubtitleStyle.Render("(none)"))
	}
	for _, m := range mods {
		line := "  " + idColumnStyle.Render(m.ModID) + " " + m.Metadata.DisplayName()
		if m.Metadata.Version != "" {
			line += " " + SuccessStyle.Render(string(m.Metadata.Version))
		}
		fmt.Fprintln(w, line+"  "+SubtitleStyle.Render(m.Source.Location()))
	}

	libs := d.Libs()
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Libraries (%d)", len(libs))))
	if len(libs) == 0 {
		fmt.Fprintln(w, "  "+SubtitleStyle.Render("(none)"))
	}
	for _, lib := range libs {
		fmt.Fprintln(w, "  "+lib.Location())
	}

	diags := d.Diagnostics()
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Diagnostics (%d)", len(diags))))
	for _, diag := range diags {
		label := WarningStyle.Render(string(diag.Severity))
		if diag.Severity == discovery.SeverityError {
			label = ErrorStyle.Render(string(diag.Severity))
		}
		fmt.Fprintf(w, "  %s [%s] %s: %s\n", label, diag.Code, diag.Path, diag.Message)
	}
}

// diagnosticIssue picks the catalogued issue for the first error diagnostic, falling
// back to the legacy manifest issue when only warnings were reported.
func diagnosticIssue(diags []discovery.Diagnostic) issue.Id {
	for _, diag := range diags {
		if diag.Severity != discovery.SeverityError {
			continue
		}
		switch diag.Code {
		case discovery.CodeManifestSchema:
			return issue.ManifestSchemaId
		case discovery.CodeManifestInvalid, discovery.CodeManifestMalformed, discovery.CodeManifestUnreadable:
			return issue.ManifestInvalidId
		}
	}
	return issue.LegacyManifestId
}
