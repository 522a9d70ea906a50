package cmd

import (
	"fmt"
	"os"
	"strings"

	"aetherd/internal/config"
	"aetherd/internal/orchestrator"
	"aetherd/internal/reporting"
	"aetherd/pkg/logging"
)

// setupLogging initializes CLI-mode logging. The --debug flag wins over the
// configured log level.
func setupLogging(cfg config.AetherConfig, debug bool) {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	} else {
		switch strings.ToLower(cfg.GlobalSettings.LogLevel) {
		case "debug":
			level = logging.LevelDebug
		case "warn", "warning":
			level = logging.LevelWarn
		case "error":
			level = logging.LevelError
		}
	}
	logging.InitForCLI(level, os.Stderr)
}

// newOrchestrator builds an orchestrator with an event bus and a console
// reporter attached. The returned cleanup detaches the reporter and closes
// the bus.
func newOrchestrator(cfg config.AetherConfig, debug bool) (*orchestrator.Orchestrator, func(), error) {
	minSeverity := reporting.SeverityInfo
	if debug {
		minSeverity = reporting.SeverityDebug
	}

	bus := reporting.NewEventBus()
	reporter := reporting.NewConsoleReporter(bus, minSeverity)

	orch, err := orchestrator.New(cfg, bus)
	if err != nil {
		reporter.Close()
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	cleanup := func() {
		reporter.Close()
		bus.Close()
	}
	return orch, cleanup, nil
}
