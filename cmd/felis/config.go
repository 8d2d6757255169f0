// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felisloader/felis/internal/config"
)

func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect felis configuration",
		Long: `Inspect felis configuration.

Configuration is read from:
  - Linux: ~/.config/felis/config.cue
  - macOS: ~/Library/Application Support/felis/config.cue
  - Windows: %APPDATA%\felis\config.cue
falling back to ./felis.cue. FELIS_* environment variables override the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			path, err := config.FilePath(config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return err
			}

			source := SubtitleStyle.Render("(using defaults)")
			if path != "" {
				source = path
			}
			fmt.Fprintf(app.stdout, "%s: %s\n\n", KeyStyle.Render("Config file"), source)
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(dir, config.ConfigFileName))
			return nil
		},
	})

	return cfgCmd
}
