// Package config holds the configuration structs shared across the client.
package config

// ClientConfig configures the core client behavior.
type ClientConfig struct {
	// Mothership is the base URL of the central coordination API.
	Mothership string `mapstructure:"mothership"`
	// AppID identifies this application build, e.g. "world.type.headless".
	AppID string `mapstructure:"app_id"`
	// Commercial marks commercial builds, which endpoints must allow explicitly.
	Commercial bool `mapstructure:"commercial"`
	// FontsFolder overrides the OS-conventional installation folder when set.
	FontsFolder string `mapstructure:"fonts_folder"`
	// Online controls whether the client goes online on startup.
	Online bool `mapstructure:"online"`
	// PushNotifications enables the live message-queue connection.
	PushNotifications bool `mapstructure:"push_notifications"`
}

// PreferencesConfig selects and configures the preferences backend.
type PreferencesConfig struct {
	// Backend is one of "json", "sqlite", "memory".
	Backend string `mapstructure:"backend"`
	// Path is the file location for the json and sqlite backends.
	Path string `mapstructure:"path"`
}

// ControlConfig configures the local control API used by externally
// controlled (GUI) setups.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// AuthKey is the shared secret a controlling process must present.
	AuthKey string `mapstructure:"auth_key"`
}

// LoggerConfig configures logging output.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}
