// Package clientconfig handles configuration loading for htduplexctl.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), the same way the server-side
// config package this is adapted from handles secrets like database URIs.
//
// # Example Configuration
//
//	endpoint: https://example.com/duplex
//	id: ${HTDUPLEX_CONNECTION_ID}
//	connectTimeout: 15s
//	readTimeout: 120s
//
// See [Load] for loading configuration from a file.
package clientconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for htduplexctl.
type Config struct {
	// Endpoint is the absolute URL of the duplex server.
	Endpoint string `yaml:"endpoint"`
	// ID is the server-assigned connection identifier (spec.md §9: the
	// handshake that assigns it is out of scope for this module).
	ID string `yaml:"id"`
	// ConnectTimeout bounds establishing the underlying TCP/TLS connection.
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	// ReadTimeout bounds waiting for each donated response.
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// Load reads configuration from a YAML file, expanding environment
// variable references before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clientconfig: reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("clientconfig: parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("clientconfig: validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 120 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}
