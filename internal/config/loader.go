package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/aetherd"
	projectConfigDir = ".aetherd"
	configFileName   = "config.yaml"
)

// LoadConfig loads the aetherd configuration by layering default, user, and
// project settings.
func LoadConfig() (AetherConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. Layer the user-specific configuration, if present
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; don't fail
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return AetherConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	// 3. Layer the project-specific configuration, if present
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return AetherConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads an AetherConfig from a YAML file.
func loadConfigFromFile(filePath string) (AetherConfig, error) {
	var config AetherConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return AetherConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return AetherConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay AetherConfig) AetherConfig {
	merged := base

	if overlay.GlobalSettings.RootDir != "" {
		merged.GlobalSettings.RootDir = overlay.GlobalSettings.RootDir
	}
	if overlay.GlobalSettings.ToolsDir != "" {
		merged.GlobalSettings.ToolsDir = overlay.GlobalSettings.ToolsDir
	}
	if overlay.GlobalSettings.PluginBasePort != 0 {
		merged.GlobalSettings.PluginBasePort = overlay.GlobalSettings.PluginBasePort
	}
	if overlay.GlobalSettings.MinRuntimeVersion != "" {
		merged.GlobalSettings.MinRuntimeVersion = overlay.GlobalSettings.MinRuntimeVersion
	}
	if overlay.GlobalSettings.LogLevel != "" {
		merged.GlobalSettings.LogLevel = overlay.GlobalSettings.LogLevel
	}

	// Tool overrides are keyed by id; later layers win
	overrides := make(map[string]ToolOverride)
	for _, o := range base.Tools {
		overrides[o.ID] = o
	}
	for _, o := range overlay.Tools {
		overrides[o.ID] = o
	}
	if len(overrides) > 0 {
		// A fresh slice: reusing base.Tools' backing array would clobber the
		// caller's data
		tools := make([]ToolOverride, 0, len(overrides))
		for _, t := range DefaultTools() {
			if o, ok := overrides[t.ID]; ok {
				tools = append(tools, o)
				delete(overrides, t.ID)
			}
		}
		// Overrides for unknown ids are kept, in stable order, so validation
		// can warn on them
		unknown := make([]string, 0, len(overrides))
		for id := range overrides {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		for _, id := range unknown {
			tools = append(tools, overrides[id])
		}
		merged.Tools = tools
	}

	return merged
}

// EffectiveTools applies config overrides to the built-in tool table and
// returns the tools the boot sequence should bring up, in declaration order.
func EffectiveTools(cfg AetherConfig) []ToolConfig {
	overrides := make(map[string]ToolOverride)
	for _, o := range cfg.Tools {
		overrides[o.ID] = o
	}

	var tools []ToolConfig
	for _, t := range DefaultTools() {
		if o, ok := overrides[t.ID]; ok {
			if o.Disabled {
				continue
			}
			if o.Port != 0 {
				t.Port = o.Port
			}
		}
		tools = append(tools, t)
	}
	return tools
}
