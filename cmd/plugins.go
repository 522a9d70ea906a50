package cmd

import (
	"fmt"

	"aetherd/internal/config"
	"aetherd/internal/plugins"

	"github.com/spf13/cobra"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins installed under the plugins directory",
		Long: `Scans the plugins directory and prints every valid plugin found there,
with its manifest metadata. Directories without a plugin.json are ignored;
directories with an invalid manifest are reported as warnings and skipped.`,
		Args: cobra.NoArgs,
		RunE: runPlugins,
	}
}

func runPlugins(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg, false)

	paths, err := config.ResolvePaths(cfg.GlobalSettings)
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}

	registry := plugins.NewRegistry(paths.Plugins)
	discovered, err := registry.Scan()
	if err != nil {
		return err
	}

	if len(discovered) == 0 {
		fmt.Printf("No plugins installed under %s\n", paths.Plugins)
		return nil
	}

	fmt.Printf("%-22s %-10s %-18s %s\n", "PLUGIN", "VERSION", "AUTHOR", "REQUESTED PORT")
	for _, d := range discovered {
		port := "auto"
		if d.Manifest.Port != 0 {
			port = fmt.Sprintf("%d", d.Manifest.Port)
		}
		fmt.Printf("%-22s %-10s %-18s %s\n", d.ID(), d.Manifest.Version, d.Manifest.Author, port)
	}
	return nil
}
