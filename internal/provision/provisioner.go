// Package provision creates isolated per-tool virtualenvs and installs each
// tool's declared dependencies, idempotently via a ready marker.
package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"aetherd/internal/config"
	"aetherd/internal/reporting"
	"aetherd/internal/runtime"
	"aetherd/pkg/logging"
)

// For mocking in tests
var execCommandContext = exec.CommandContext

// SetupError means creating the isolated runtime environment failed.
type SetupError struct {
	Tool string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("environment setup failed for %s: %v", e.Tool, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// InstallError means installing the tool's declared dependencies failed.
type InstallError struct {
	Tool string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("dependency install failed for %s: %v", e.Tool, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Result reports the outcome of an Ensure call.
type Result struct {
	// Skipped is true when the tool has no source directory on disk; that is
	// not a provisioning failure.
	Skipped bool
	// Reason explains a skip.
	Reason string
	// RuntimePath is the virtualenv interpreter to launch the tool with.
	RuntimePath string
	// Cached is true when the ready marker short-circuited provisioning.
	Cached bool
}

// Provisioner builds virtualenvs with the detected host runtime.
type Provisioner struct {
	runtime runtime.Runtime
	paths   config.Paths
	bus     reporting.EventBus
}

// NewProvisioner creates a provisioner. bus may be nil when no observer is
// attached (tests).
func NewProvisioner(rt runtime.Runtime, paths config.Paths, bus reporting.EventBus) *Provisioner {
	return &Provisioner{runtime: rt, paths: paths, bus: bus}
}

// Ensure provisions the tool's environment if needed and returns the path of
// its interpreter. Calling it twice performs the expensive work at most once:
// a valid ready marker plus an existing interpreter returns immediately.
func (p *Provisioner) Ensure(ctx context.Context, tool config.ToolConfig) (Result, error) {
	srcDir := p.paths.ToolSourceDir(tool)
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		logging.Debug("Provisioner", "Tool %s has no source directory at %s; skipping", tool.ID, srcDir)
		return Result{Skipped: true, Reason: fmt.Sprintf("source directory %s does not exist", srcDir)}, nil
	}

	envDir := p.paths.ToolEnvDir(tool.ID)
	interpreter := runtime.InterpreterPath(envDir)
	requirementsPath := filepath.Join(srcDir, config.RequirementsName)
	requirementsHash := hashRequirements(requirementsPath)

	if marker, ok := readMarker(envDir); ok {
		if _, err := os.Stat(interpreter); err == nil && marker.RequirementsHash == requirementsHash {
			logging.Debug("Provisioner", "Environment for %s already provisioned", tool.ID)
			return Result{RuntimePath: interpreter, Cached: true}, nil
		}
	}

	if _, err := os.Stat(interpreter); os.IsNotExist(err) {
		if err := p.createEnv(ctx, envDir); err != nil {
			return Result{}, &SetupError{Tool: tool.ID, Err: err}
		}
		logging.Info("Provisioner", "Created environment for %s", tool.ID)
		p.publish(reporting.NewProvisionEvent(reporting.EventTypeEnvCreated, tool.ID, interpreter))
	}

	if _, err := os.Stat(requirementsPath); err == nil {
		if err := p.installRequirements(ctx, interpreter, requirementsPath); err != nil {
			return Result{}, &InstallError{Tool: tool.ID, Err: err}
		}
		logging.Info("Provisioner", "Installed dependencies for %s", tool.ID)
		p.publish(reporting.NewProvisionEvent(reporting.EventTypeEnvDepsReady, tool.ID, interpreter))
	}

	if err := writeMarker(envDir, tool.ID, interpreter, requirementsHash); err != nil {
		// The environment is usable; the marker only costs a re-provision
		// next boot.
		logging.Warn("Provisioner", "Failed to write ready marker for %s: %v", tool.ID, err)
	}

	p.publish(reporting.NewProvisionEvent(reporting.EventTypeEnvProvisioned, tool.ID, interpreter))
	return Result{RuntimePath: interpreter}, nil
}

// createEnv invokes the detected runtime's venv facility.
func (p *Provisioner) createEnv(ctx context.Context, envDir string) error {
	args := append(append([]string{}, p.runtime.Command[1:]...), "-m", "venv", envDir)
	cmd := execCommandContext(ctx, p.runtime.Command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("venv creation: %w (%s)", err, firstLine(out))
	}
	return nil
}

// installRequirements runs the isolated environment's installer against the
// dependency manifest. The pip self-upgrade is best-effort.
func (p *Provisioner) installRequirements(ctx context.Context, interpreter, requirementsPath string) error {
	upgrade := execCommandContext(ctx, interpreter, "-m", "pip", "install", "--upgrade", "pip")
	if out, err := upgrade.CombinedOutput(); err != nil {
		logging.Debug("Provisioner", "pip self-upgrade failed (ignored): %v (%s)", err, firstLine(out))
	}

	install := execCommandContext(ctx, interpreter, "-m", "pip", "install", "-r", requirementsPath)
	if out, err := install.CombinedOutput(); err != nil {
		return fmt.Errorf("pip install -r %s: %w (%s)", filepath.Base(requirementsPath), err, firstLine(out))
	}
	return nil
}

func (p *Provisioner) publish(event reporting.Event) {
	if p.bus != nil {
		p.bus.Publish(event)
	}
}

// firstLine keeps error detail readable: installer output can run to
// thousands of lines.
func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
