// Package config handles configuration loading for the SMP server.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like database credentials and the SML endpoint to be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, TLS, base path, protocols)
//   - storage: Entity store backend (MongoDB or in-memory)
//   - sml: Service Metadata Locator integration
//   - auth: Bearer token validation
//   - observability: Metrics endpoint
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  basePath: "/smp"
//	  debug: false
//	  tls:
//	    enabled: true
//	    certFile: /etc/ssl/server.crt
//	    keyFile: /etc/ssl/server.key
//
//	storage:
//	  type: mongodb
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: smp
//
//	sml:
//	  enabled: true
//	  managementUrl: https://edelivery.tech.ec.europa.eu/edelivery-sml
//	  smpId: SMP-EXAMPLE-001
//	  dnsZone: edelivery.tech.ec.europa.eu.
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend types.
const (
	StorageMongoDB = "mongodb"
	StorageMemory  = "memory"
)

// Config is the root configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	SML     SMLConfig     `yaml:"sml"`
	Auth    AuthConfig    `yaml:"auth"`
	Metrics MetricsConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
	AdminKey string `yaml:"adminKey"` // API key for admin endpoints

	// Debug includes internal error text in responses; never enable in
	// production.
	Debug bool `yaml:"debug"`

	// CacheTTL bounds how long resolution reads may serve a cached
	// service group.
	CacheTTL time.Duration `yaml:"cacheTTL"`

	TLS struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// StorageConfig holds entity store settings
type StorageConfig struct {
	// Type selects the backend: "mongodb" or "memory"
	Type    string        `yaml:"type"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// SMLConfig holds Service Metadata Locator settings
type SMLConfig struct {
	Enabled bool `yaml:"enabled"`

	// ManagementURL is the SML participant management endpoint
	ManagementURL string `yaml:"managementUrl"`

	// SMPID is this publisher's identifier at the SML
	SMPID string `yaml:"smpId"`

	// DNSZone is the SML publication zone used for verification lookups
	DNSZone string `yaml:"dnsZone"`

	// DNSServer overrides the resolver for verification lookups
	DNSServer string `yaml:"dnsServer"`

	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig holds bearer token validation settings. HTTP Basic
// credentials are always accepted; bearer tokens only when a secret is
// configured.
type AuthConfig struct {
	BearerSecret string `yaml:"bearerSecret"`
	Issuer       string `yaml:"issuer"`
	Audience     string `yaml:"audience"`
}

// MetricsConfig holds observability settings
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/smp"
	}
	if c.Server.CacheTTL == 0 {
		c.Server.CacheTTL = time.Minute
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageMongoDB
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "smp"
	}
	if c.SML.Timeout == 0 {
		c.SML.Timeout = 30 * time.Second
	}
	if c.Metrics.Metrics.Path == "" {
		c.Metrics.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case StorageMongoDB:
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required")
		}
	case StorageMemory:
		// No settings
	default:
		return fmt.Errorf("storage.type must be '%s' or '%s', got '%s'", StorageMongoDB, StorageMemory, c.Storage.Type)
	}

	if c.SML.Enabled {
		if c.SML.ManagementURL == "" {
			return fmt.Errorf("sml.managementUrl is required when sml is enabled")
		}
		if c.SML.SMPID == "" {
			return fmt.Errorf("sml.smpId is required when sml is enabled")
		}
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile are required when tls is enabled")
	}

	return nil
}
