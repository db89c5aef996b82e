// Package config manages configuration for the refine-mcp adapter. Settings
// come from an optional TOML file with environment variable overrides; a
// .env file in the working directory is honored if present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variable names recognized as overrides.
const (
	EnvRefineURL        = "OPENREFINE_URL"
	EnvMaxDownloadBytes = "OPENREFINE_MAX_DOWNLOAD_BYTES"
	EnvRequestTimeout   = "OPENREFINE_REQUEST_TIMEOUT"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultRefineURL      = "http://localhost:3333"
	DefaultRequestTimeout = 30 * time.Second
	DefaultServerHostName = "127.0.0.1"
	DefaultServerPort     = "8015"
)

// ServerConfig holds MCP HTTP endpoint related configuration.
type ServerConfig struct {
	HostName   string `toml:"hostname" validate:"omitempty,hostname|ip"` // hostname for the MCP endpoint
	Port       string `toml:"port" validate:"omitempty,numeric"`         // port for the MCP endpoint
	HandleCORS bool   `toml:"handle_cors"`                               // whether to handle CORS
}

// ConfigParam holds all configuration parameters for the adapter.
type ConfigParam struct {
	// Wrapped OpenRefine instance
	RefineURL        string `toml:"refine_url" validate:"required,url"` // base URL of the OpenRefine instance
	RequestTimeout   string `toml:"request_timeout"`                    // per-request timeout, Go duration syntax
	MaxDownloadBytes int64  `toml:"max_download_bytes" validate:"gte=0"` // cap on dataset downloads and exports; 0 means unbounded

	// MCP HTTP endpoint
	Server ServerConfig `toml:"server"`
}

// GetRequestTimeout returns the request timeout as time.Duration.
func (c *ConfigParam) GetRequestTimeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	return time.ParseDuration(c.RequestTimeout)
}

// GetRequestTimeoutOrDefault returns the request timeout as time.Duration or
// panics if the configured value is invalid.
func (c *ConfigParam) GetRequestTimeoutOrDefault() time.Duration {
	d, err := c.GetRequestTimeout()
	if err != nil {
		panic(fmt.Sprintf("invalid request timeout: %v", err))
	}
	return d
}

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	return cfg
}

// LoadConfig loads configuration from the given file, then applies
// environment overrides. An empty filename skips the file and uses defaults
// plus environment only.
func LoadConfig(filename string) error {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	c := &ConfigParam{}
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), c); err != nil {
			return fmt.Errorf("error parsing config file: %v", err)
		}
	}

	if err := applyEnvOverrides(c); err != nil {
		return err
	}
	applyDefaults(c)

	if err := ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	cfg = c
	return nil
}

func applyEnvOverrides(c *ConfigParam) error {
	if v := os.Getenv(EnvRefineURL); v != "" {
		c.RefineURL = v
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		c.RequestTimeout = v
	}
	if v := os.Getenv(EnvMaxDownloadBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", EnvMaxDownloadBytes, err)
		}
		c.MaxDownloadBytes = n
	}
	return nil
}

func applyDefaults(c *ConfigParam) {
	if c.RefineURL == "" {
		c.RefineURL = DefaultRefineURL
	}
	if c.Server.HostName == "" {
		c.Server.HostName = DefaultServerHostName
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
}

// ValidateConfig validates the configuration using struct tags and checks
// the fields the tags cannot express.
func ValidateConfig(c *ConfigParam) error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := c.GetRequestTimeout(); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// TestInit initializes configuration with defaults for unit tests.
func TestInit() {
	cfg = &ConfigParam{}
	applyDefaults(cfg)
}
