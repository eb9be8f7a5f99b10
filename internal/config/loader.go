package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "barscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BARSCAN"
)

// envAliases maps config keys to the unprefixed variables used by existing
// deployments. Prefixed variables take precedence.
var envAliases = map[string]string{
	"provider.api_key": "CLOUDMERSIVE_API_KEY",
	"catalog.db_path":  "DB_PATH",
	"server.port":      "PORT",
}

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command are honored.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a private viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads configuration from the standard search paths, the environment
// and defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile is Load with an explicit config file. An empty path searches
// the standard locations, and a missing file there is not an error.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration without validating it.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	if err := l.setupEnvironmentVariables(); err != nil {
		return nil, err
	}
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() error {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for key, alias := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := l.v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("provider.api_key", defaults.Provider.APIKey)
	l.v.SetDefault("provider.base_url", defaults.Provider.BaseURL)
	l.v.SetDefault("provider.timeout_sec", defaults.Provider.TimeoutSec)

	l.v.SetDefault("catalog.db_path", defaults.Catalog.DBPath)
	l.v.SetDefault("catalog.debug", defaults.Catalog.Debug)
	l.v.SetDefault("catalog.seed_demo", defaults.Catalog.SeedDemo)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.websocket_enabled", defaults.Server.WebSocketEnabled)

	rl := defaults.Server.RateLimit
	l.v.SetDefault("server.rate_limit.enabled", rl.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", rl.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", rl.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", rl.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day", rl.MaxDataPerDay)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "barscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "barscan"))
	}

	return append(paths, "/etc/barscan")
}
