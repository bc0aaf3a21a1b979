package config

// Config represents the complete runtime configuration.
type Config struct {
	Event   EventConfig   `yaml:"event"`
	Plugins PluginsConfig `yaml:"plugins"`
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
}

// EventConfig defines event dispatch settings.
type EventConfig struct {
	// IdleSleepTime is the EDT sleep between loop iterations, in
	// milliseconds. Range 1-1000.
	IdleSleepTime int `yaml:"idle_sleep_time"`
	// TickResolution is the minimum interval between timer-fire passes,
	// in milliseconds. Range IdleSleepTime-1000.
	TickResolution int `yaml:"tick_resolution"`
}

// PluginsConfig defines plugin manager settings.
type PluginsConfig struct {
	// Dir is the directory scanned for plugin libraries at init.
	// Empty means no auto-load.
	Dir string `yaml:"dir,omitempty"`
}

// LogConfig defines log sink settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// APIConfig defines HTTP introspection server settings.
type APIConfig struct {
	// Listen is the bind address. Empty disables the API server.
	Listen string `yaml:"listen,omitempty"`
}

// JournalConfig defines the dispatch journal settings.
type JournalConfig struct {
	// Path is the sqlite database file. Empty disables the journal.
	Path string `yaml:"path,omitempty"`
}
