package config

// AetherConfig is the top-level configuration structure for aetherd.
type AetherConfig struct {
	GlobalSettings GlobalSettings `yaml:"globalSettings"`
	Tools          []ToolOverride `yaml:"tools,omitempty"`
}

// GlobalSettings holds host-wide knobs.
type GlobalSettings struct {
	// RootDir overrides the aether home directory (default ~/.aether-os).
	RootDir string `yaml:"rootDir,omitempty"`
	// ToolsDir overrides where built-in tool sources live (default <root>/tools).
	ToolsDir string `yaml:"toolsDir,omitempty"`
	// PluginBasePort is the first port handed to plugins without an explicit
	// port request (default 5100).
	PluginBasePort int `yaml:"pluginBasePort,omitempty"`
	// MinRuntimeVersion is the minimum accepted Python version (default 3.9).
	MinRuntimeVersion string `yaml:"minRuntimeVersion,omitempty"`
	// LogLevel is one of debug, info, warn, error (default info).
	LogLevel string `yaml:"logLevel,omitempty"`
}

// ToolOverride lets a config file disable a built-in tool or move its port.
type ToolOverride struct {
	ID       string `yaml:"id"`
	Disabled bool   `yaml:"disabled,omitempty"`
	Port     int    `yaml:"port,omitempty"`
}

// ToolConfig is the definition of a runnable worker service. Built-in tools
// come from the shipped table in defaults.go; plugins are derived from their
// manifests at scan time. Instances are treated as immutable once registered.
type ToolConfig struct {
	// ID is the unique tool identifier, also passed to the worker as AETHER_TOOL.
	ID string `yaml:"id"`
	// Port is the worker's assigned HTTP port, unique across all tools.
	Port        int    `yaml:"port"`
	DisplayName string `yaml:"displayName"`
	Category    string `yaml:"category,omitempty"`
	Icon        string `yaml:"icon,omitempty"`
	Version     string `yaml:"version,omitempty"`
	Author      string `yaml:"author,omitempty"`
	// IsPlugin marks user-installed tools; these always carry a resolved Path.
	IsPlugin bool `yaml:"isPlugin,omitempty"`
	// BuiltIn marks tools shipped with the host application.
	BuiltIn bool `yaml:"builtIn,omitempty"`
	// Path is the directory holding the tool's entry point (server.py).
	// Empty for built-ins until resolved against the tools directory.
	Path string `yaml:"path,omitempty"`
}

// EntryPointName is the worker entry point file expected in every tool
// and plugin directory.
const EntryPointName = "server.py"

// RequirementsName is the optional per-tool dependency manifest.
const RequirementsName = "requirements.txt"

// ManifestName is the plugin descriptor expected at a plugin directory root.
const ManifestName = "plugin.json"
