// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/felisloader/felis/internal/discovery"
	"github.com/felisloader/felis/internal/issue"
)

// descriptionWidth is the word wrap width for rendered mod descriptions.
const descriptionWidth = 80

func newModCommand(app *App, flags *rootFlagValues) *cobra.Command {
	modCmd := &cobra.Command{
		Use:   "mod",
		Short: "Inspect discovered mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	modCmd.AddCommand(&cobra.Command{
		Use:   "info <modid> [dirs...]",
		Short: "Show a mod's manifest",
		Long: `Show a mod's manifest: name, version, authors, transformations and side
bindings. The description is rendered as Markdown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			dirs, err := app.modDirs(cfg, flags, args[1:])
			if err != nil {
				return err
			}
			l, err := app.discover(cmd.Context(), cfg, flags, app.newLogger(cfg, flags), dirs)
			if err != nil {
				return err
			}
			defer l.Close()

			mod, ok := l.Discoverer().Mod(args[0])
			if !ok {
				return &ExitError{
					Code: exitNotFound,
					Err: issue.NewErrorContext().
						WithOperation("show mod").
						WithResource(args[0]).
						WithSuggestion("Run 'felis discover' to list the registered mod ids").
						Wrap(fmt.Errorf("mod %q is not registered", args[0])).
						BuildError(),
				}
			}
			return printModInfo(app.stdout, mod)
		},
	})

	return modCmd
}

func printModInfo(w io.Writer, mod *discovery.Mod) error {
	meta := mod.Metadata

	fmt.Fprintln(w, TitleStyle.Render(meta.DisplayName())+" "+SubtitleStyle.Render("("+meta.ModID+")"))
	field := func(key, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(key), SuccessStyle.Render(value))
		}
	}
	field("version", string(meta.Version))
	field("authors", strings.Join(meta.Authors, ", "))
	field("source", mod.Source.Location())

	if meta.Description != "" {
		rendered, err := renderMarkdown(meta.Description)
		if err != nil {
			return fmt.Errorf("render description: %w", err)
		}
		fmt.Fprint(w, rendered)
	} else {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Transformations (%d)", len(meta.Transformations))))
	for _, t := range meta.Transformations {
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(t.Name), SubtitleStyle.Render(t.Specifier))
		for _, target := range t.Targets {
			fmt.Fprintf(w, "    -> %s\n", target)
		}
	}

	if len(meta.Sides) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Sides (%d)", len(meta.Sides))))
		for _, class := range slices.Sorted(maps.Keys(meta.Sides)) {
			fmt.Fprintf(w, "  %s %s\n", idColumnStyle.Render(class), meta.Sides[class])
		}
	}
	return nil
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(descriptionWidth),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}
