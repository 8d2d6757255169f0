// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felisloader/felis/internal/issue"
	"github.com/felisloader/felis/internal/language"
)

func newTransformCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "transform <class-name> <file> [dirs...]",
		Short: "Run the transformation pipeline over one class file",
		Long: `Run the transformation pipeline over one class file.

Mods are discovered first so that their transformations apply. The result is
written to --output, or to stdout when no output is given. A class skipped by
a transformation, for example one bound to the other side, produces no output.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, file := args[0], args[1]
			data, err := os.ReadFile(file)
			if err != nil {
				return issue.WrapWithContext(err, "read class file", file)
			}

			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			dirs, err := app.modDirs(cfg, flags, args[2:])
			if err != nil {
				return err
			}
			l, err := app.discover(cmd.Context(), cfg, flags, app.newLogger(cfg, flags), dirs)
			if err != nil {
				return err
			}
			defer l.Close()

			out, skipped, err := l.LoadClass(class, data)
			if err != nil {
				var resErr *language.ResolutionError
				if errors.As(err, &resErr) {
					app.explain(issue.AdapterResolutionFailedId, flags)
				} else {
					app.explain(issue.TransformationFailedId, flags)
				}
				return &ExitError{Code: exitFailure, Err: issue.WrapWithContext(err, "transform class", class)}
			}
			if skipped {
				fmt.Fprintln(app.stderr, WarningStyle.Render("skipped: ")+class+" is not loaded on the "+string(cfg.Side)+" side")
				return nil
			}

			if output == "" || output == "-" {
				_, err = app.stdout.Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return issue.WrapWithContext(err, "write transformed class", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the transformed class here instead of stdout")
	return cmd
}
