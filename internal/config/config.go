package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. MOCKSERVER_SERVER_PORT.
const EnvPrefix = "MOCKSERVER"

// Storage types
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Analytics  AnalyticsConfig  `yaml:"analytics" mapstructure:"analytics"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" mapstructure:"telemetry"`
	Templating TemplatingConfig `yaml:"templating" mapstructure:"templating"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	Host         string        `yaml:"host" mapstructure:"host"`
	APIPrefix    string        `yaml:"apiPrefix" mapstructure:"apiPrefix"`
	ReadTimeout  time.Duration `yaml:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout" mapstructure:"writeTimeout"`
	TLS          TLSConfig     `yaml:"tls" mapstructure:"tls"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile     string `yaml:"certFile" mapstructure:"certFile"`
	KeyFile      string `yaml:"keyFile" mapstructure:"keyFile"`
	AutoGenerate bool   `yaml:"autoGenerate" mapstructure:"autoGenerate"` // self-signed when no cert is configured
	StorePath    string `yaml:"storePath" mapstructure:"storePath"`       // empty means storage.path/certs
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type string `yaml:"type" mapstructure:"type"` // memory, file, postgres or sqlite
	Path string `yaml:"path" mapstructure:"path"` // directory for file storage
	DSN  string `yaml:"dsn" mapstructure:"dsn"`   // connection string for postgres / sqlite
}

// AnalyticsConfig controls request recording
type AnalyticsConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	MaxRecords int  `yaml:"maxRecords" mapstructure:"maxRecords"`
	Persist    bool `yaml:"persist" mapstructure:"persist"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// TelemetryConfig controls OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Exporter    string `yaml:"exporter" mapstructure:"exporter"` // otlp or stdout
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string `yaml:"serviceName" mapstructure:"serviceName"`
}

// TemplatingConfig controls placeholder generation
type TemplatingConfig struct {
	Seed int64 `yaml:"seed" mapstructure:"seed"` // 0 means random
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Format      string `yaml:"format" mapstructure:"format"`
	DevRequests bool   `yaml:"devRequests" mapstructure:"devRequests"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			APIPrefix:    "/api",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			TLS: TLSConfig{
				Enabled:      false,
				AutoGenerate: true,
			},
		},
		Storage: StorageConfig{
			Type: StorageFile,
			Path: defaultDataPath(),
		},
		Analytics: AnalyticsConfig{
			Enabled:    true,
			MaxRecords: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Telemetry: TelemetryConfig{
			Exporter:    "stdout",
			ServiceName: "go-mockserver",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func defaultDataPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, "data")
}

// SetDefaults registers every default value with v so that environment
// overrides resolve for all keys.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.apiPrefix", d.Server.APIPrefix)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	v.SetDefault("server.tls.enabled", d.Server.TLS.Enabled)
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.autoGenerate", d.Server.TLS.AutoGenerate)
	v.SetDefault("server.tls.storePath", "")

	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dsn", "")

	v.SetDefault("analytics.enabled", d.Analytics.Enabled)
	v.SetDefault("analytics.maxRecords", d.Analytics.MaxRecords)
	v.SetDefault("analytics.persist", d.Analytics.Persist)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.exporter", d.Telemetry.Exporter)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.serviceName", d.Telemetry.ServiceName)

	v.SetDefault("templating.seed", d.Templating.Seed)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.devRequests", d.Logging.DevRequests)
}

// BindEnv makes v read MOCKSERVER_* environment variables
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes the resolved settings of v and validates them
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration and normalizes the API prefix
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	c.Server.APIPrefix = "/" + strings.Trim(c.Server.APIPrefix, "/")
	if c.Server.APIPrefix == "/" {
		return fmt.Errorf("server.apiPrefix must not be the root path")
	}

	switch c.Storage.Type {
	case StorageMemory, StorageFile:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres storage")
		}
	case StorageSQLite:
		if c.Storage.DSN == "" {
			c.Storage.DSN = filepath.Join(c.Storage.Path, "mockserver.db")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}

	if c.Analytics.MaxRecords <= 0 {
		c.Analytics.MaxRecords = 1000
	}

	switch c.Telemetry.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("unknown telemetry exporter: %q", c.Telemetry.Exporter)
	}

	return nil
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CertStorePath returns where auto-generated certificates are kept
func (c *Config) CertStorePath() string {
	if c.Server.TLS.StorePath != "" {
		return c.Server.TLS.StorePath
	}
	return filepath.Join(c.Storage.Path, "certs")
}
