package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_Defaults(t *testing.T) {
	orig := osUserHomeDir
	osUserHomeDir = func() (string, error) { return "/home/tester", nil }
	t.Cleanup(func() { osUserHomeDir = orig })

	paths, err := ResolvePaths(GlobalSettings{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/home/tester", ".aether-os"), paths.Root)
	assert.Equal(t, filepath.Join(paths.Root, "tools"), paths.Tools)
	assert.Equal(t, filepath.Join(paths.Root, "plugins"), paths.Plugins)
	assert.Equal(t, filepath.Join(paths.Root, "envs"), paths.Envs)
	assert.Equal(t, filepath.Join(paths.Root, "data"), paths.Data)
}

func TestResolvePaths_Overrides(t *testing.T) {
	paths, err := ResolvePaths(GlobalSettings{
		RootDir:  "/opt/aether",
		ToolsDir: "/srv/tools",
	})
	require.NoError(t, err)

	assert.Equal(t, "/opt/aether", paths.Root)
	assert.Equal(t, "/srv/tools", paths.Tools)
	assert.Equal(t, filepath.Join("/opt/aether", "plugins"), paths.Plugins)
}

func TestToolSourceDir(t *testing.T) {
	paths := Paths{Tools: "/opt/aether/tools"}

	// Built-ins resolve against the tools directory by id
	builtin := ToolConfig{ID: "terminal", BuiltIn: true}
	assert.Equal(t, filepath.Join("/opt/aether/tools", "terminal"), paths.ToolSourceDir(builtin))

	// Plugins carry their own path
	plugin := ToolConfig{ID: "weather", IsPlugin: true, Path: "/opt/aether/plugins/weather"}
	assert.Equal(t, "/opt/aether/plugins/weather", paths.ToolSourceDir(plugin))
}

func TestToolEnvDirAndInitRecord(t *testing.T) {
	paths := Paths{Envs: "/opt/aether/envs", Data: "/opt/aether/data"}

	assert.Equal(t, filepath.Join("/opt/aether/envs", "notes"), paths.ToolEnvDir("notes"))
	assert.Equal(t, filepath.Join("/opt/aether/data", InitRecordName), paths.InitRecordPath())
}
