package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aetherd/internal/config"
	"aetherd/internal/orchestrator"
	"aetherd/pkg/logging"

	"github.com/spf13/cobra"
)

// bootDebug enables verbose logging across the boot run.
var bootDebug bool

// bootWatch keeps the process in the foreground watching the plugins
// directory for installs and removals.
var bootWatch bool

// bootNoWait makes the command return right after the boot sequence instead
// of supervising the spawned tools until interrupted.
var bootNoWait bool

func newBootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Detect the runtime, provision every tool and launch the fleet",
		Long: `Runs the full boot sequence: detect a suitable Python runtime, prepare the
aether directories, discover installed plugins, provision each tool's virtual
environment and launch every tool on its assigned port.

A tool whose environment or launch fails is reported and skipped; the rest of
the fleet still comes up. Only a missing runtime aborts the boot.

By default the command then stays in the foreground supervising the spawned
processes until interrupted (Ctrl+C), at which point everything is stopped.`,
		Args: cobra.NoArgs,
		RunE: runBoot,
	}

	cmd.Flags().BoolVar(&bootDebug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&bootWatch, "watch", false, "Watch the plugins directory and load/unload plugins as they appear")
	cmd.Flags().BoolVar(&bootNoWait, "no-wait", false, "Exit after the boot sequence instead of supervising the tools")

	return cmd
}

func runBoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg, bootDebug)

	orch, cleanup, err := newOrchestrator(cfg, bootDebug)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := orch.Boot(ctx)
	printBootResult(result)
	if !result.Success {
		return fmt.Errorf("boot failed: %s", result.Error)
	}

	if bootNoWait {
		orch.Shutdown()
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if bootWatch {
		go func() {
			if err := orch.WatchPlugins(watchCtx); err != nil && watchCtx.Err() == nil {
				logging.Warn("CLI", "Plugin watcher stopped: %v", err)
			}
		}()
	}

	running := len(orch.Instances())
	fmt.Printf("\n%d tool(s) running. Press Ctrl+C to stop.\n", running)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	cancel()
	orch.Shutdown()
	return nil
}

func printBootResult(result orchestrator.BootResult) {
	if !result.Success {
		fmt.Fprintf(os.Stderr, "Boot failed: %s\n", result.Error)
		return
	}

	fmt.Printf("Runtime: %s\n", result.Runtime)
	for _, tool := range result.Tools {
		switch {
		case tool.Skipped:
			fmt.Printf("  - %-22s skipped (%s)\n", tool.Tool, tool.Reason)
		case !tool.Success:
			fmt.Printf("  - %-22s FAILED: %s\n", tool.Tool, tool.Error)
		default:
			fmt.Printf("  - %-22s running (PID %d, port %d)\n", tool.Tool, tool.PID, tool.Port)
		}
	}
}
