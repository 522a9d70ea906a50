package config

// Built-in port layout. Ports 5002-5012 are reserved for shipped tools;
// plugins are allocated from DefaultPluginBasePort upward.
const (
	DefaultPluginBasePort    = 5100
	DefaultMinRuntimeVersion = "3.9"
)

// DefaultTools returns the table of built-in tools in declaration order.
// The boot sequencer provisions and launches them in exactly this order,
// before any plugins.
func DefaultTools() []ToolConfig {
	return []ToolConfig{
		{ID: "spreadsheet_engine", Port: 5002, DisplayName: "Data Grid", Category: "Productivity", Icon: "📊", BuiltIn: true},
		{ID: "ollama_chat", Port: 5003, DisplayName: "Ollama LLM", Category: "AI", Icon: "🤖", BuiltIn: true},
		{ID: "image_gen", Port: 5004, DisplayName: "Image Generation", Category: "AI", Icon: "🎨", BuiltIn: true},
		{ID: "tts_engine", Port: 5005, DisplayName: "Text to Speech", Category: "AI", Icon: "🔊", BuiltIn: true},
		{ID: "stt_engine", Port: 5006, DisplayName: "Speech to Text", Category: "AI", Icon: "🎤", BuiltIn: true},
		{ID: "file_manager", Port: 5007, DisplayName: "File Manager", Category: "System", Icon: "📁", BuiltIn: true},
		{ID: "notes", Port: 5008, DisplayName: "Notes Board", Category: "Productivity", Icon: "📝", BuiltIn: true},
		{ID: "system_monitor", Port: 5009, DisplayName: "System Monitor", Category: "System", Icon: "📈", BuiltIn: true},
		{ID: "terminal", Port: 5010, DisplayName: "Terminal", Category: "System", Icon: "💻", BuiltIn: true},
		{ID: "code_editor", Port: 5011, DisplayName: "Code Editor", Category: "Development", Icon: "⌨️", BuiltIn: true},
		{ID: "video_gen", Port: 5012, DisplayName: "Video Gen (Camera Motion)", Category: "AI", Icon: "🎬", BuiltIn: true},
	}
}

// GetDefaultConfig returns the default aetherd configuration.
func GetDefaultConfig() AetherConfig {
	return AetherConfig{
		GlobalSettings: GlobalSettings{
			PluginBasePort:    DefaultPluginBasePort,
			MinRuntimeVersion: DefaultMinRuntimeVersion,
			LogLevel:          "info",
		},
	}
}

// HighestBuiltInPort returns the top of the built-in port range.
func HighestBuiltInPort() int {
	highest := 0
	for _, t := range DefaultTools() {
		if t.Port > highest {
			highest = t.Port
		}
	}
	return highest
}
