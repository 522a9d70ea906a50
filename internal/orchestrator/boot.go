package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"aetherd/internal/provision"
	"aetherd/internal/reporting"
	"aetherd/internal/supervisor"
	"aetherd/pkg/logging"
)

// BootPhase is the boot state machine's current stage.
type BootPhase string

const (
	PhaseIdle              BootPhase = "Idle"
	PhaseDetectingRuntime  BootPhase = "DetectingRuntime"
	PhaseInitializingCore  BootPhase = "InitializingCore"
	PhaseProvisioningTools BootPhase = "ProvisioningTools"
	PhaseLaunchingTools    BootPhase = "LaunchingTools"
	PhaseReady             BootPhase = "Ready"
	PhaseFailed            BootPhase = "Failed"
)

// Progress milestones, in percent.
const (
	progressDetected     = 10
	progressInitialized  = 20
	progressProvisionEnd = 70
	progressLaunching    = 75
	progressReady        = 100
)

// ToolBootResult is one tool's entry in the boot outcome.
type ToolBootResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Port    int    `json:"port,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BootResult is the aggregate outcome of a boot run. Success is false only
// when runtime detection failed; individual tool failures are recorded in
// Tools and never fail the boot as a whole.
type BootResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Runtime describes the detected interpreter, e.g. "/usr/bin/python3 (3.11.4)".
	Runtime string           `json:"runtime,omitempty"`
	Tools   []ToolBootResult `json:"tools"`
}

// initRecord is written exactly once, on the very first boot.
type initRecord struct {
	InitializedAt string `json:"initializedAt"`
}

// Phase returns the boot state machine's current phase.
func (o *Orchestrator) Phase() BootPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(phase BootPhase) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()
}

// Boot drives the ordered bring-up: runtime detection, core initialization,
// plugin discovery, then sequential provisioning and launch of every
// registered tool. Tools are processed strictly one at a time to bound disk
// and installer contention and to keep progress percentages meaningful.
// External operations issued while boot is running queue behind the current
// per-tool step on the orchestrator lock.
func (o *Orchestrator) Boot(ctx context.Context) BootResult {
	bootID := reporting.GenerateCorrelationID()

	// Stage 1: runtime detection. The only fatal failure in the system.
	o.setPhase(PhaseDetectingRuntime)
	o.progress(bootID, "detecting-runtime", "Detecting Python runtime", progressDetected, "")

	rt, err := o.detector.Detect(ctx)
	if err != nil {
		o.setPhase(PhaseFailed)
		o.publish(reporting.NewErrorEvent("boot", "runtime detection failed", err))
		logging.Error("Boot", err, "Runtime detection failed; aborting boot")
		return BootResult{Success: false, Error: err.Error()}
	}

	o.mu.Lock()
	o.rt = &rt
	o.provisioner = o.provisionerFactory(rt, o.paths, o.bus)
	o.mu.Unlock()

	// Stage 2: core initialization.
	o.setPhase(PhaseInitializingCore)
	o.progress(bootID, "initializing", "Preparing aether directories", progressInitialized, "")
	if err := o.initializeCore(); err != nil {
		// Directory trouble is surfaced but does not abort: individual tools
		// will fail with concrete errors of their own.
		o.publish(reporting.NewErrorEvent("boot", "core initialization failed", err))
		logging.Error("Boot", err, "Core initialization failed")
	}

	o.registerDiscoveredPlugins()

	// Stage 3+4: provision, then launch, built-ins first, then plugins.
	toolIDs := o.toolOrder()
	results := make([]ToolBootResult, 0, len(toolIDs))
	provisioned := make(map[string]provision.Result, len(toolIDs))

	o.setPhase(PhaseProvisioningTools)
	for i, id := range toolIDs {
		percent := provisionPercent(i+1, len(toolIDs))
		o.progress(bootID, "provisioning", fmt.Sprintf("Provisioning %s", id), percent, id)

		result, err := o.provisionOne(ctx, id)
		if err != nil {
			o.publish(reporting.NewErrorEvent(id, "provisioning failed", err))
			logging.Error("Boot", err, "Provisioning %s failed; continuing with remaining tools", id)
			results = append(results, ToolBootResult{Tool: id, Success: false, Error: err.Error()})
			continue
		}
		provisioned[id] = result
		results = append(results, ToolBootResult{Tool: id, Success: true})
	}

	o.setPhase(PhaseLaunchingTools)
	o.progress(bootID, "launching", "Launching tools", progressLaunching, "")
	for i := range results {
		entry := &results[i]
		if !entry.Success {
			continue
		}
		prov := provisioned[entry.Tool]
		if prov.Skipped {
			entry.Skipped = true
			entry.Reason = prov.Reason
			continue
		}

		spawn, err := o.launchOne(ctx, entry.Tool, prov.RuntimePath)
		if err != nil {
			o.publish(reporting.NewErrorEvent(entry.Tool, "spawn failed", err))
			logging.Error("Boot", err, "Launching %s failed; continuing with remaining tools", entry.Tool)
			entry.Success = false
			entry.Error = err.Error()
			continue
		}
		if spawn.Skipped {
			entry.Skipped = true
			entry.Reason = spawn.Reason
			continue
		}
		entry.PID = spawn.PID
		entry.Port = spawn.Port
	}

	o.setPhase(PhaseReady)
	o.progress(bootID, "ready", "All tools processed", progressReady, "")
	logging.Info("Boot", "Boot complete: %d tool(s) processed", len(results))

	return BootResult{
		Success: true,
		Runtime: fmt.Sprintf("%s (%s)", rt.Path, rt.Version),
		Tools:   results,
	}
}

// provisionOne runs the provisioner for one tool behind the orchestrator
// lock, so external operations queue behind it rather than racing it.
func (o *Orchestrator) provisionOne(ctx context.Context, id string) (provision.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tool, ok := o.tools[id]
	if !ok {
		// Unloaded while boot was running
		return provision.Result{Skipped: true, Reason: "tool unregistered during boot"}, nil
	}
	return o.provisioner.Ensure(ctx, tool)
}

// launchOne spawns one tool behind the orchestrator lock.
func (o *Orchestrator) launchOne(ctx context.Context, id, interpreter string) (supervisor.SpawnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tool, ok := o.tools[id]
	if !ok {
		return supervisor.SpawnResult{Skipped: true, Reason: "tool unregistered during boot"}, nil
	}
	return o.supervisor.Spawn(ctx, tool, interpreter)
}

// toolOrder snapshots the declaration order under the lock.
func (o *Orchestrator) toolOrder() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// registerDiscoveredPlugins scans the plugins root and registers anything not
// yet known. A failed scan is logged and skipped; it never aborts boot.
func (o *Orchestrator) registerDiscoveredPlugins() {
	discovered, err := o.pluginReg.Scan()
	if err != nil {
		o.publish(reporting.NewErrorEvent("plugins", "plugin scan failed", err))
		logging.Error("Boot", err, "Plugin scan failed")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, d := range discovered {
		id := d.ID()
		if _, exists := o.tools[id]; exists {
			continue
		}
		port := o.ports.Allocate(id, d.Manifest.Port)
		tool := d.ToolConfig(port)
		o.tools[id] = tool
		o.order = append(o.order, id)
		logging.Info("Boot", "Registered plugin %s on port %d", id, port)
	}
}

// initializeCore creates the root directories and writes the first-boot
// record exactly once.
func (o *Orchestrator) initializeCore() error {
	for _, dir := range []string{o.paths.Root, o.paths.Tools, o.paths.Plugins, o.paths.Envs, o.paths.Data} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	recordPath := o.paths.InitRecordPath()
	if _, err := os.Stat(recordPath); err == nil {
		return nil
	}

	record := initRecord{InitializedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(recordPath, data, 0o644); err != nil {
		return fmt.Errorf("write init record: %w", err)
	}
	logging.Info("Boot", "First boot: wrote init record to %s", recordPath)
	return nil
}

// provisionPercent interpolates the provisioning progress across the
// 20-70 percent band.
func provisionPercent(done, total int) int {
	if total == 0 {
		return progressProvisionEnd
	}
	span := progressProvisionEnd - progressInitialized
	return progressInitialized + done*span/total
}

func (o *Orchestrator) progress(bootID, stage, message string, percent int, tool string) {
	event := reporting.NewBootProgressEvent(stage, message, percent, tool)
	event.BaseEvent.WithCorrelation(bootID)
	o.publish(event)
}
