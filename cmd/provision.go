package cmd

import (
	"context"
	"fmt"

	"aetherd/internal/config"
	"aetherd/internal/provision"
	"aetherd/internal/reporting"
	"aetherd/internal/runtime"

	"github.com/spf13/cobra"
)

// provisionDebug enables verbose logging for the provisioning run.
var provisionDebug bool

func newProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision [tool-id...]",
		Short: "Provision tool environments without launching anything",
		Long: `Detects the host runtime and builds the virtual environment for the named
tools, or for every configured tool when no ids are given. Environments that
are already provisioned are left alone. Nothing is launched.`,
		RunE: runProvision,
	}
	cmd.Flags().BoolVar(&provisionDebug, "debug", false, "Enable debug logging")
	return cmd
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg, provisionDebug)

	paths, err := config.ResolvePaths(cfg.GlobalSettings)
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}

	minVersion := cfg.GlobalSettings.MinRuntimeVersion
	if minVersion == "" {
		minVersion = config.DefaultMinRuntimeVersion
	}
	detector, err := runtime.NewDetector(minVersion)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := detector.Detect(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Runtime: %s (%s)\n", rt.Path, rt.Version)

	tools := selectTools(cfg, args)
	if len(tools) == 0 {
		return fmt.Errorf("no matching tools to provision")
	}

	bus := reporting.NewEventBus()
	defer bus.Close()
	reporter := reporting.NewConsoleReporter(bus, reporting.SeverityWarn)
	defer reporter.Close()

	provisioner := provision.NewProvisioner(rt, paths, bus)
	failures := 0
	for _, tool := range tools {
		result, err := provisioner.Ensure(ctx, tool)
		switch {
		case err != nil:
			fmt.Printf("  - %-22s FAILED: %v\n", tool.ID, err)
			failures++
		case result.Skipped:
			fmt.Printf("  - %-22s skipped (%s)\n", tool.ID, result.Reason)
		case result.Cached:
			fmt.Printf("  - %-22s already provisioned\n", tool.ID)
		default:
			fmt.Printf("  - %-22s provisioned\n", tool.ID)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d tool(s) failed to provision", failures)
	}
	return nil
}

// selectTools filters the effective tool table down to the requested ids, or
// returns the whole table when no ids were given. Unknown ids are reported.
func selectTools(cfg config.AetherConfig, ids []string) []config.ToolConfig {
	all := config.EffectiveTools(cfg)
	if len(ids) == 0 {
		return all
	}

	byID := make(map[string]config.ToolConfig, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	var selected []config.ToolConfig
	for _, id := range ids {
		tool, ok := byID[id]
		if !ok {
			fmt.Printf("  - %-22s unknown tool id\n", id)
			continue
		}
		selected = append(selected, tool)
	}
	return selected
}
