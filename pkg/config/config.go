package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfiguration holds everything the server needs to start.
type ServerConfiguration struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// Host is the bind address. Empty binds all interfaces.
	Host string `yaml:"host,omitempty"`

	// HandlerDir is the root of the handler source tree.
	HandlerDir string `yaml:"handlerDir"`

	// SpecFile is the OpenAPI document path. Empty runs the server
	// without a contract; every route is then unconstrained.
	SpecFile string `yaml:"specFile,omitempty"`

	// Watch enables hot reload of the handler tree.
	Watch bool `yaml:"watch"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"logLevel,omitempty"`

	// LogFormat is text or json.
	LogFormat string `yaml:"logFormat,omitempty"`

	// ReadTimeout and WriteTimeout bound each HTTP exchange, in seconds.
	ReadTimeout  int `yaml:"readTimeout,omitempty"`
	WriteTimeout int `yaml:"writeTimeout,omitempty"`
}

// ReadTimeoutDuration returns the read timeout as a duration.
func (c *ServerConfiguration) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a duration.
func (c *ServerConfiguration) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// DefaultServerConfiguration returns the defaults the CLI starts from.
func DefaultServerConfiguration() *ServerConfiguration {
	return &ServerConfiguration{
		Port:         4280,
		HandlerDir:   "handlers",
		Watch:        true,
		LogLevel:     "info",
		LogFormat:    "text",
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
}

// LoadFile reads a YAML configuration file over the defaults.
func LoadFile(path string) (*ServerConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultServerConfiguration()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *ServerConfiguration) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.HandlerDir == "" {
		return fmt.Errorf("handlerDir must be set")
	}
	return nil
}
