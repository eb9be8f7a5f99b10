package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
)

// Config is the complete barscan configuration. It is assembled from the
// config file, BARSCAN_* environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Provider ProviderConfig `mapstructure:"provider" yaml:"provider" json:"provider"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog" json:"catalog"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
}

// ProviderConfig holds the barcode recognition provider settings.
type ProviderConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// CatalogConfig holds the product catalog store settings.
type CatalogConfig struct {
	DBPath   string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	Debug    bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
	SeedDemo bool   `mapstructure:"seed_demo" yaml:"seed_demo" json:"seed_demo"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string          `mapstructure:"host" yaml:"host" json:"host"`
	Port             int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB      int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec       int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WebSocketEnabled bool            `mapstructure:"websocket_enabled" yaml:"websocket_enabled" json:"websocket_enabled"`
	RateLimit        RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Provider: ProviderConfig{
			BaseURL:    barcode.DefaultBaseURL,
			TimeoutSec: int(barcode.DefaultTimeout / time.Second),
		},
		Catalog: CatalogConfig{
			DBPath:   catalog.DefaultDBPath,
			SeedDemo: true,
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			CORSOrigin:       "*",
			MaxUploadMB:      10,
			TimeoutSec:       60,
			ShutdownTimeout:  10,
			WebSocketEnabled: true,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDay:     1 << 30,
			},
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and returns any errors.
// A missing provider API key is not an error here: decode requests report it.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url must not be empty")
	}
	if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
		return fmt.Errorf("invalid provider.base_url: %s (must start with http:// or https://)", c.Provider.BaseURL)
	}
	if c.Provider.TimeoutSec <= 0 {
		return fmt.Errorf("invalid provider timeout: %d (must be positive)", c.Provider.TimeoutSec)
	}

	if strings.TrimSpace(c.Catalog.DBPath) == "" {
		return errors.New("catalog.db_path must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}

	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		return errors.New("rate limits must not be negative")
	}

	return nil
}

// ToBarcodeConfig converts the provider section to the decode gateway configuration.
func (c *Config) ToBarcodeConfig() barcode.Config {
	return barcode.Config{
		APIKey:  c.Provider.APIKey,
		BaseURL: c.Provider.BaseURL,
		Timeout: time.Duration(c.Provider.TimeoutSec) * time.Second,
	}
}

// ToCatalogOptions converts the catalog section to store options.
func (c *Config) ToCatalogOptions() catalog.Options {
	return catalog.Options{
		Path:  c.Catalog.DBPath,
		Debug: c.Catalog.Debug,
	}
}

// Redacted returns a copy safe for printing, with the API key masked.
func (c Config) Redacted() Config {
	c.Provider.APIKey = MaskSecret(c.Provider.APIKey)
	return c
}

// MaskSecret keeps the last four characters of long secrets and hides the rest.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
