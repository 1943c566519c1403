package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/typeworld/typeworld-go/internal/shared/config"
)

// Mothership is the default central coordination API.
const Mothership = "https://api.type.world/v1"

type Config struct {
	Client      sharedConfig.ClientConfig      `mapstructure:"client"`
	Preferences sharedConfig.PreferencesConfig `mapstructure:"preferences"`
	Control     sharedConfig.ControlConfig     `mapstructure:"control"`
	Logger      sharedConfig.LoggerConfig      `mapstructure:"logger"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TYPEWORLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration, loading defaults if necessary.
func Get() *Config {
	appConfigMu.RLock()
	cfg := appConfig
	appConfigMu.RUnlock()
	if cfg == nil {
		cfg, _ = Load("")
	}
	return cfg
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "typeworld")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.mothership", Mothership)
	v.SetDefault("client.app_id", "world.type.headless")
	v.SetDefault("client.commercial", false)
	v.SetDefault("client.fonts_folder", "")
	v.SetDefault("client.online", true)
	v.SetDefault("client.push_notifications", false)

	v.SetDefault("preferences.backend", "json")
	v.SetDefault("preferences.path", filepath.Join(DefaultDir(), "preferences.json"))

	v.SetDefault("control.enabled", false)
	v.SetDefault("control.host", "127.0.0.1")
	v.SetDefault("control.port", 8743)
	v.SetDefault("control.auth_key", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stderr")
}
