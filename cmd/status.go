package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"aetherd/internal/config"
	"aetherd/internal/runtime"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured tools and the state of their environments",
		Long: `Prints the resolved directory layout and, for every configured tool,
its assigned port and whether its source directory and virtual environment
exist on disk. This inspects the filesystem only; it does not talk to a
running aetherd process.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg, false)

	paths, err := config.ResolvePaths(cfg.GlobalSettings)
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}

	fmt.Printf("Root:    %s\n", paths.Root)
	fmt.Printf("Tools:   %s\n", paths.Tools)
	fmt.Printf("Plugins: %s\n", paths.Plugins)
	fmt.Printf("Envs:    %s\n", paths.Envs)

	if _, err := os.Stat(paths.InitRecordPath()); err == nil {
		fmt.Println("Initialized: yes")
	} else {
		fmt.Println("Initialized: no (first boot pending)")
	}

	fmt.Printf("\n%-22s %-6s %-10s %-8s %s\n", "TOOL", "PORT", "CATEGORY", "SOURCE", "ENV")
	for _, tool := range config.EffectiveTools(cfg) {
		fmt.Println(formatToolStatus(paths, tool))
	}
	return nil
}

func formatToolStatus(paths config.Paths, tool config.ToolConfig) string {
	source := "absent"
	if _, err := os.Stat(filepath.Join(paths.ToolSourceDir(tool), config.EntryPointName)); err == nil {
		source = "present"
	}

	env := "absent"
	if _, err := os.Stat(runtime.InterpreterPath(paths.ToolEnvDir(tool.ID))); err == nil {
		env = "ready"
	}

	return fmt.Sprintf("%-22s %-6d %-10s %-8s %s", tool.ID, tool.Port, tool.Category, source, env)
}
