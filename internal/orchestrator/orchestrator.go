// Package orchestrator coordinates runtime detection, environment
// provisioning, port allocation, process supervision and plugin registration
// for the aether host. It is the central control point: all shared state is
// owned here and every operation runs behind one lock, so concurrent
// start/stop/load requests resolve deterministically instead of racing on
// the tool and instance tables.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"aetherd/internal/config"
	"aetherd/internal/plugins"
	"aetherd/internal/ports"
	"aetherd/internal/provision"
	"aetherd/internal/reporting"
	"aetherd/internal/runtime"
	"aetherd/internal/supervisor"
	"aetherd/pkg/logging"
)

// runtimeDetector abstracts runtime detection for mocking in tests;
// satisfied by *runtime.Detector.
type runtimeDetector interface {
	Detect(ctx context.Context) (runtime.Runtime, error)
}

// toolProvisioner abstracts environment provisioning for mocking in tests;
// satisfied by *provision.Provisioner.
type toolProvisioner interface {
	Ensure(ctx context.Context, tool config.ToolConfig) (provision.Result, error)
}

func defaultProvisionerFactory(rt runtime.Runtime, paths config.Paths, bus reporting.EventBus) toolProvisioner {
	return provision.NewProvisioner(rt, paths, bus)
}

// Orchestrator owns the tool table, the port registry, the cached runtime
// and the supervisor. Mutating state outside its methods is not supported.
type Orchestrator struct {
	mu sync.Mutex

	cfg   config.AetherConfig
	paths config.Paths
	bus   reporting.EventBus

	detector   runtimeDetector
	ports      *ports.Registry
	pluginReg  *plugins.Registry
	supervisor *supervisor.Supervisor

	// provisionerFactory builds the provisioner once detection succeeded.
	provisionerFactory func(rt runtime.Runtime, paths config.Paths, bus reporting.EventBus) toolProvisioner

	// tools maps tool id -> ToolConfig (built-ins and plugins).
	tools map[string]config.ToolConfig
	// order preserves declaration order: built-ins first, then plugins in
	// discovery order.
	order []string

	// rt is the cached resolved runtime; nil until detection succeeded.
	rt          *runtime.Runtime
	provisioner toolProvisioner

	phase BootPhase
}

// New creates an orchestrator for the given configuration. Built-in tools are
// registered immediately; plugins are discovered during Boot or via
// LoadPlugin.
func New(cfg config.AetherConfig, bus reporting.EventBus) (*Orchestrator, error) {
	paths, err := config.ResolvePaths(cfg.GlobalSettings)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	minVersion := cfg.GlobalSettings.MinRuntimeVersion
	if minVersion == "" {
		minVersion = config.DefaultMinRuntimeVersion
	}
	detector, err := runtime.NewDetector(minVersion)
	if err != nil {
		return nil, err
	}

	basePort := cfg.GlobalSettings.PluginBasePort
	if basePort == 0 {
		basePort = config.DefaultPluginBasePort
	}

	o := &Orchestrator{
		cfg:                cfg,
		paths:              paths,
		bus:                bus,
		detector:           detector,
		ports:              ports.NewRegistry(basePort),
		pluginReg:          plugins.NewRegistry(paths.Plugins),
		supervisor:         supervisor.NewSupervisor(paths, bus),
		provisionerFactory: defaultProvisionerFactory,
		tools:              make(map[string]config.ToolConfig),
		phase:              PhaseIdle,
	}

	for _, tool := range config.EffectiveTools(cfg) {
		if err := o.registerLocked(tool); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// registerLocked inserts a tool and reserves its port. Caller holds o.mu or
// has exclusive access during construction.
func (o *Orchestrator) registerLocked(tool config.ToolConfig) error {
	if _, exists := o.tools[tool.ID]; exists {
		return fmt.Errorf("tool %q already registered", tool.ID)
	}
	if err := o.ports.Reserve(tool.Port, tool.ID); err != nil {
		return fmt.Errorf("register %s: %w", tool.ID, err)
	}
	o.tools[tool.ID] = tool
	o.order = append(o.order, tool.ID)
	return nil
}

// Paths returns the resolved directory layout.
func (o *Orchestrator) Paths() config.Paths {
	return o.paths
}

// Bus returns the event bus observers subscribe to.
func (o *Orchestrator) Bus() reporting.EventBus {
	return o.bus
}

// Runtime returns the cached resolved runtime, if detection has run.
func (o *Orchestrator) Runtime() (runtime.Runtime, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rt == nil {
		return runtime.Runtime{}, false
	}
	return *o.rt, true
}

// Tools returns the registered tools in declaration order.
func (o *Orchestrator) Tools() []config.ToolConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]config.ToolConfig, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.tools[id])
	}
	return out
}

// Tool returns a registered tool by id.
func (o *Orchestrator) Tool(id string) (config.ToolConfig, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tool, ok := o.tools[id]
	return tool, ok
}

// Instances returns the currently running instances.
func (o *Orchestrator) Instances() []supervisor.InstanceInfo {
	return o.supervisor.Instances()
}

// StartTool provisions (if needed) and spawns one tool. It requires runtime
// detection to have succeeded, i.e. a prior Boot.
func (o *Orchestrator) StartTool(ctx context.Context, id string) (supervisor.SpawnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startToolLocked(ctx, id)
}

func (o *Orchestrator) startToolLocked(ctx context.Context, id string) (supervisor.SpawnResult, error) {
	tool, ok := o.tools[id]
	if !ok {
		return supervisor.SpawnResult{}, fmt.Errorf("tool %q not found", id)
	}
	if o.provisioner == nil {
		return supervisor.SpawnResult{}, fmt.Errorf("runtime not detected yet; boot first")
	}

	provisioned, err := o.provisioner.Ensure(ctx, tool)
	if err != nil {
		return supervisor.SpawnResult{}, err
	}
	if provisioned.Skipped {
		return supervisor.SpawnResult{Skipped: true, Reason: provisioned.Reason}, nil
	}

	return o.supervisor.Spawn(ctx, tool, provisioned.RuntimePath)
}

// StopTool terminates a tool's running instance, if any.
func (o *Orchestrator) StopTool(id string) (supervisor.StopOutcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.tools[id]; !ok {
		return supervisor.StopNotRunning, fmt.Errorf("tool %q not found", id)
	}
	return o.supervisor.Stop(id)
}

// RestartTool stops and starts a tool.
func (o *Orchestrator) RestartTool(ctx context.Context, id string) (supervisor.SpawnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.supervisor.Stop(id); err != nil {
		logging.Warn("Orchestrator", "Stop during restart of %s failed: %v", id, err)
	}
	return o.startToolLocked(ctx, id)
}

// LoadPlugin registers an already-installed plugin at runtime, provisions its
// environment and spawns it. The plugin directory must exist.
func (o *Orchestrator) LoadPlugin(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	discovered, err := o.pluginReg.Load(id)
	if err != nil {
		return err
	}

	toolID := discovered.ID()
	if _, exists := o.tools[toolID]; exists {
		return fmt.Errorf("plugin %q already loaded", toolID)
	}

	port := o.ports.Allocate(toolID, discovered.Manifest.Port)
	tool := discovered.ToolConfig(port)
	o.tools[toolID] = tool
	o.order = append(o.order, toolID)

	o.publish(reporting.NewPluginEvent(reporting.EventTypePluginLoaded, toolID, port))
	logging.Info("Orchestrator", "Loaded plugin %s on port %d", toolID, port)

	if _, err := o.startToolLocked(ctx, toolID); err != nil {
		// The plugin stays registered; the caller can retry via StartTool
		o.publish(reporting.NewErrorEvent(toolID, "plugin start failed", err))
		return err
	}
	return nil
}

// UnloadPlugin removes a plugin's registration and releases its port. It
// refuses to touch built-ins. Stopping a running instance and deleting the
// plugin's files are the caller's responsibility, in that order, before
// calling this.
func (o *Orchestrator) UnloadPlugin(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	tool, ok := o.tools[id]
	if !ok {
		return fmt.Errorf("plugin %q not found", id)
	}
	if !tool.IsPlugin {
		return fmt.Errorf("%q is a built-in tool, not a plugin", id)
	}

	delete(o.tools, id)
	for i, oid := range o.order {
		if oid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	o.ports.Release(id)

	o.publish(reporting.NewPluginEvent(reporting.EventTypePluginUnloaded, id, tool.Port))
	logging.Info("Orchestrator", "Unloaded plugin %s", id)
	return nil
}

// WatchPlugins blocks watching the plugins root, loading plugins whose
// directories appear and unloading ones whose directories vanish. Runs until
// ctx is done.
func (o *Orchestrator) WatchPlugins(ctx context.Context) error {
	return o.pluginReg.Watch(ctx, plugins.WatchFuncs{
		OnInstalled: func(dirName string) {
			if err := o.LoadPlugin(ctx, dirName); err != nil {
				logging.Warn("Orchestrator", "Auto-load of plugin %s failed: %v", dirName, err)
			}
		},
		OnRemoved: o.handlePluginRemoved,
	})
}

// handlePluginRemoved stops and unloads the plugin whose directory vanished.
// Removal callbacks carry the directory name, which is not always the tool
// id (the manifest name wins at registration), so the id is resolved from
// the tool table first.
func (o *Orchestrator) handlePluginRemoved(dirName string) {
	id, ok := o.pluginIDForDir(dirName)
	if !ok {
		logging.Debug("Orchestrator", "Removed directory %s matches no loaded plugin", dirName)
		return
	}

	if _, err := o.StopTool(id); err != nil {
		logging.Debug("Orchestrator", "Stop of removed plugin %s: %v", id, err)
	}
	if err := o.UnloadPlugin(id); err != nil {
		logging.Warn("Orchestrator", "Unload of removed plugin %s: %v", id, err)
	}
}

// pluginIDForDir maps a plugin directory name to the id it was registered
// under. Plugins always carry their resolved directory in Path.
func (o *Orchestrator) pluginIDForDir(dirName string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, tool := range o.tools {
		if tool.IsPlugin && filepath.Base(tool.Path) == dirName {
			return id, true
		}
	}
	return "", false
}

// Shutdown stops all running instances. Each instance receives exactly one
// terminate request; after Shutdown the instance table is empty.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	logging.Info("Orchestrator", "Shutting down; stopping %d running tool(s)", len(o.supervisor.Instances()))
	o.supervisor.StopAll()
	o.phase = PhaseIdle
}

func (o *Orchestrator) publish(event reporting.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}
