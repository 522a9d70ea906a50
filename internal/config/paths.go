package config

import (
	"os"
	"path/filepath"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

const (
	rootDirName    = ".aether-os"
	toolsDirName   = "tools"
	pluginsDirName = "plugins"
	envsDirName    = "envs"
	dataDirName    = "data"

	// InitRecordName marks that first-boot initialization already ran.
	InitRecordName = ".initialized.json"
)

// Paths holds the resolved filesystem layout the orchestrator works in.
type Paths struct {
	// Root is the aether home directory.
	Root string
	// Tools holds built-in tool sources, one subdirectory per tool id.
	Tools string
	// Plugins holds user-installed plugins, one subdirectory per plugin.
	Plugins string
	// Envs holds per-tool virtualenvs, one subdirectory per tool id.
	Envs string
	// Data is scratch space for workers and the init record.
	Data string
}

// ResolvePaths derives the directory layout from settings, falling back to
// ~/.aether-os when no root override is configured.
func ResolvePaths(settings GlobalSettings) (Paths, error) {
	root := settings.RootDir
	if root == "" {
		home, err := osUserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		root = filepath.Join(home, rootDirName)
	}

	tools := settings.ToolsDir
	if tools == "" {
		tools = filepath.Join(root, toolsDirName)
	}

	return Paths{
		Root:    root,
		Tools:   tools,
		Plugins: filepath.Join(root, pluginsDirName),
		Envs:    filepath.Join(root, envsDirName),
		Data:    filepath.Join(root, dataDirName),
	}, nil
}

// ToolSourceDir returns the source directory for a tool: built-ins live under
// the tools directory keyed by id, plugins carry their own resolved path.
func (p Paths) ToolSourceDir(tool ToolConfig) string {
	if tool.Path != "" {
		return tool.Path
	}
	return filepath.Join(p.Tools, tool.ID)
}

// ToolEnvDir returns the virtualenv directory for a tool id.
func (p Paths) ToolEnvDir(toolID string) string {
	return filepath.Join(p.Envs, toolID)
}

// InitRecordPath returns the first-boot record location.
func (p Paths) InitRecordPath() string {
	return filepath.Join(p.Data, InitRecordName)
}
