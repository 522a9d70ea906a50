package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aetherd",
	Short: "Orchestrate local AETHER tool servers",
	Long: `aetherd detects a host Python runtime, provisions isolated virtual
environments for the AETHER tool servers, assigns each tool a local port and
supervises the resulting processes. Plugins dropped into the plugins
directory are discovered, registered and launched alongside the built-ins.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed boots, missing tools)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "aetherd version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newBootCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPluginsCmd())
	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newVersionCmd())
}
