package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherd/internal/config"
	"aetherd/internal/reporting"
)

func testConfig(t *testing.T) config.AetherConfig {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.GlobalSettings.RootDir = t.TempDir()
	return cfg
}

func installPlugin(t *testing.T, cfg config.AetherConfig, dirName, manifest string) {
	t.Helper()
	dir := filepath.Join(cfg.GlobalSettings.RootDir, "plugins", dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestName), []byte(manifest), 0o644))
}

func TestNew_RegistersBuiltIns(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	tools := o.Tools()
	assert.Len(t, tools, 11)

	// Declaration order is preserved
	defaults := config.DefaultTools()
	for i := range tools {
		assert.Equal(t, defaults[i].ID, tools[i].ID)
		assert.Equal(t, defaults[i].Port, tools[i].Port)
	}

	assert.Equal(t, PhaseIdle, o.Phase())
}

func TestNew_RejectsPortCollision(t *testing.T) {
	cfg := testConfig(t)
	// Move notes onto terminal's port
	cfg.Tools = []config.ToolOverride{{ID: "notes", Port: 5010}}

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already reserved")
}

func TestNew_DisabledToolNotRegistered(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools = []config.ToolOverride{{ID: "terminal", Disabled: true}}

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_, ok := o.Tool("terminal")
	assert.False(t, ok)
	assert.Len(t, o.Tools(), 10)
}

func TestTool_Lookup(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	tool, ok := o.Tool("terminal")
	require.True(t, ok)
	assert.Equal(t, 5010, tool.Port)
	assert.True(t, tool.BuiltIn)

	_, ok = o.Tool("ghost")
	assert.False(t, ok)
}

func TestStartTool_UnknownTool(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	_, err = o.StartTool(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStartTool_RequiresBoot(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	_, err = o.StartTool(context.Background(), "terminal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot first")
}

func TestStopTool_UnknownTool(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	_, err = o.StopTool("ghost")
	assert.Error(t, err)
}

func TestRuntime_UnsetBeforeBoot(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	_, detected := o.Runtime()
	assert.False(t, detected)
}

func TestLoadPlugin_RegistersAndAllocatesPort(t *testing.T) {
	cfg := testConfig(t)
	installPlugin(t, cfg, "weather", `{"name": "weather", "displayName": "Weather Station"}`)

	bus := reporting.NewEventBus()
	defer bus.Close()

	o, err := New(cfg, bus)
	require.NoError(t, err)

	// Starting fails because no boot has run, but the registration sticks
	err = o.LoadPlugin(context.Background(), "weather")
	require.Error(t, err)

	tool, ok := o.Tool("weather")
	require.True(t, ok)
	assert.True(t, tool.IsPlugin)
	assert.Equal(t, 5100, tool.Port, "first plugin gets the base port")
	assert.Equal(t, "Weather Station", tool.DisplayName)
}

func TestLoadPlugin_SequentialPorts(t *testing.T) {
	cfg := testConfig(t)
	installPlugin(t, cfg, "weather", `{"name": "weather"}`)
	installPlugin(t, cfg, "stocks", `{"name": "stocks"}`)

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_ = o.LoadPlugin(context.Background(), "weather")
	_ = o.LoadPlugin(context.Background(), "stocks")

	weather, _ := o.Tool("weather")
	stocks, _ := o.Tool("stocks")
	assert.Equal(t, 5100, weather.Port)
	assert.Equal(t, 5101, stocks.Port)
}

func TestLoadPlugin_ManifestPortHonored(t *testing.T) {
	cfg := testConfig(t)
	installPlugin(t, cfg, "weather", `{"name": "weather", "port": 5230}`)

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_ = o.LoadPlugin(context.Background(), "weather")

	tool, ok := o.Tool("weather")
	require.True(t, ok)
	assert.Equal(t, 5230, tool.Port)
}

func TestLoadPlugin_ManifestPortCollisionFallsBack(t *testing.T) {
	cfg := testConfig(t)
	// The manifest asks for a built-in port
	installPlugin(t, cfg, "weather", `{"name": "weather", "port": 5010}`)

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_ = o.LoadPlugin(context.Background(), "weather")

	tool, ok := o.Tool("weather")
	require.True(t, ok)
	assert.Equal(t, 5100, tool.Port, "collision falls back to the plugin range")

	// The built-in keeps its port
	terminal, _ := o.Tool("terminal")
	assert.Equal(t, 5010, terminal.Port)
}

func TestLoadPlugin_Duplicate(t *testing.T) {
	cfg := testConfig(t)
	installPlugin(t, cfg, "weather", `{"name": "weather"}`)

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_ = o.LoadPlugin(context.Background(), "weather")
	err = o.LoadPlugin(context.Background(), "weather")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded")
}

func TestLoadPlugin_MissingDirectory(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	err = o.LoadPlugin(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUnloadPlugin_ReleasesPort(t *testing.T) {
	cfg := testConfig(t)
	installPlugin(t, cfg, "weather", `{"name": "weather"}`)
	installPlugin(t, cfg, "stocks", `{"name": "stocks"}`)
	installPlugin(t, cfg, "radar", `{"name": "radar", "port": 5100}`)

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_ = o.LoadPlugin(context.Background(), "weather")
	require.NoError(t, o.UnloadPlugin("weather"))

	_, ok := o.Tool("weather")
	assert.False(t, ok)

	// The implicit counter never rewinds: the next plugin moves past 5100
	_ = o.LoadPlugin(context.Background(), "stocks")
	stocks, _ := o.Tool("stocks")
	assert.Equal(t, 5101, stocks.Port)

	// But the freed port itself is grantable again on explicit request
	_ = o.LoadPlugin(context.Background(), "radar")
	radar, _ := o.Tool("radar")
	assert.Equal(t, 5100, radar.Port)
}

func TestPluginRemovalResolvesManifestName(t *testing.T) {
	cfg := testConfig(t)
	// Directory name differs from the manifest name
	installPlugin(t, cfg, "weather-v2", `{"name": "weather"}`)

	o, err := New(cfg, nil)
	require.NoError(t, err)

	_ = o.LoadPlugin(context.Background(), "weather-v2")
	_, ok := o.Tool("weather")
	require.True(t, ok)

	// Removal callbacks carry the directory name, not the tool id
	o.handlePluginRemoved("weather-v2")

	_, ok = o.Tool("weather")
	assert.False(t, ok, "the vanished plugin must be unloaded")

	// Its port went back to the pool
	installPlugin(t, cfg, "stocks", `{"name": "stocks", "port": 5100}`)
	_ = o.LoadPlugin(context.Background(), "stocks")
	stocks, ok := o.Tool("stocks")
	require.True(t, ok)
	assert.Equal(t, 5100, stocks.Port)
}

func TestPluginRemoval_UnknownDirectoryIsNoOp(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	o.handlePluginRemoved("never-loaded")
	assert.Len(t, o.Tools(), 11, "built-ins are untouched")
}

func TestUnloadPlugin_RefusesBuiltIn(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	err = o.UnloadPlugin("terminal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in")
}

func TestUnloadPlugin_Unknown(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	assert.Error(t, o.UnloadPlugin("ghost"))
}

func TestShutdown_ResetsPhase(t *testing.T) {
	o, err := New(testConfig(t), nil)
	require.NoError(t, err)

	o.Shutdown()
	assert.Equal(t, PhaseIdle, o.Phase())
	assert.Empty(t, o.Instances())
}
