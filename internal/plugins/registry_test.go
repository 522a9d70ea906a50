package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherd/internal/config"
)

func installPlugin(t *testing.T, root, dirName, manifest string) {
	t.Helper()
	dir := filepath.Join(root, dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestName), []byte(manifest), 0o644))
}

func TestParseManifestFile(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "weather", `{
		"name": "weather",
		"displayName": "Weather Station",
		"version": "1.2.0",
		"author": "someone",
		"port": 5150
	}`)

	m, err := ParseManifestFile(filepath.Join(root, "weather", config.ManifestName))
	require.NoError(t, err)

	assert.Equal(t, "weather", m.Name)
	assert.Equal(t, "Weather Station", m.DisplayName)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, 5150, m.Port)
}

func TestParseManifestFile_MissingName(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "anon", `{"displayName": "No Name"}`)

	_, err := ParseManifestFile(filepath.Join(root, "anon", config.ManifestName))
	assert.Error(t, err)
}

func TestParseManifestFile_PortOutOfRange(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "lowport", `{"name": "lowport", "port": 80}`)

	_, err := ParseManifestFile(filepath.Join(root, "lowport", config.ManifestName))
	assert.Error(t, err)
}

func TestParseManifestFile_InvalidJSON(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "broken", `{"name": "broken"`)

	_, err := ParseManifestFile(filepath.Join(root, "broken", config.ManifestName))
	assert.Error(t, err)
}

func TestRegistry_Scan(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "weather", `{"name": "weather"}`)
	installPlugin(t, root, "stocks", `{"name": "stocks"}`)

	// A directory without a manifest is not a plugin
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-plugin"), 0o755))

	// A stray file at the top level is ignored
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("hi"), 0o644))

	registry := NewRegistry(root)
	discovered, err := registry.Scan()
	require.NoError(t, err)

	ids := make([]string, 0, len(discovered))
	for _, d := range discovered {
		ids = append(ids, d.ID())
	}
	assert.ElementsMatch(t, []string{"weather", "stocks"}, ids)
}

func TestRegistry_Scan_SkipsInvalidManifest(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "good", `{"name": "good"}`)
	installPlugin(t, root, "bad", `{"port": "not a number"}`)

	registry := NewRegistry(root)
	discovered, err := registry.Scan()
	require.NoError(t, err, "an invalid manifest must not abort the scan")

	require.Len(t, discovered, 1)
	assert.Equal(t, "good", discovered[0].ID())
}

func TestRegistry_Scan_MissingRoot(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))

	discovered, err := registry.Scan()
	assert.NoError(t, err)
	assert.Empty(t, discovered)
}

func TestRegistry_Load_ByDirectoryName(t *testing.T) {
	root := t.TempDir()
	installPlugin(t, root, "weather", `{"name": "weather", "version": "2.0"}`)

	registry := NewRegistry(root)
	d, err := registry.Load("weather")
	require.NoError(t, err)

	assert.Equal(t, "weather", d.ID())
	assert.Equal(t, "2.0", d.Manifest.Version)
	assert.Equal(t, filepath.Join(root, "weather"), d.Dir)
}

func TestRegistry_Load_ByManifestName(t *testing.T) {
	root := t.TempDir()
	// Directory name differs from the manifest name
	installPlugin(t, root, "weather-v2", `{"name": "weather"}`)

	registry := NewRegistry(root)
	d, err := registry.Load("weather")
	require.NoError(t, err)

	assert.Equal(t, "weather", d.ID())
	assert.Equal(t, "weather-v2", d.DirName)
}

func TestRegistry_Load_NotFound(t *testing.T) {
	registry := NewRegistry(t.TempDir())

	_, err := registry.Load("ghost")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDiscovered_ToolConfig(t *testing.T) {
	d := Discovered{
		DirName: "weather",
		Dir:     "/plugins/weather",
		Manifest: Manifest{
			Name:        "weather",
			DisplayName: "Weather Station",
			Category:    "Utilities",
			Version:     "1.0",
			Author:      "someone",
		},
	}

	tool := d.ToolConfig(5100)
	assert.Equal(t, "weather", tool.ID)
	assert.Equal(t, 5100, tool.Port)
	assert.Equal(t, "Weather Station", tool.DisplayName)
	assert.True(t, tool.IsPlugin)
	assert.False(t, tool.BuiltIn)
	assert.Equal(t, "/plugins/weather", tool.Path)
}

func TestDiscovered_ToolConfig_DisplayNameFallback(t *testing.T) {
	d := Discovered{DirName: "bare", Dir: "/plugins/bare", Manifest: Manifest{Name: "bare"}}

	tool := d.ToolConfig(5101)
	assert.Equal(t, "bare", tool.DisplayName)
}
