package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got %q", cfg.Server.Host)
	}
	if cfg.Server.APIPrefix != "/api" {
		t.Errorf("Expected default api prefix '/api', got %q", cfg.Server.APIPrefix)
	}

	// Storage defaults
	if cfg.Storage.Type != StorageFile {
		t.Errorf("Expected default storage type 'file', got %q", cfg.Storage.Type)
	}
	if !filepath.IsAbs(cfg.Storage.Path) {
		t.Errorf("Expected default storage path to be absolute, got %q", cfg.Storage.Path)
	}
	if filepath.Base(cfg.Storage.Path) != "data" {
		t.Errorf("Expected default storage path to end with 'data', got %q", cfg.Storage.Path)
	}

	// Analytics defaults
	if !cfg.Analytics.Enabled {
		t.Error("Expected analytics enabled by default")
	}
	if cfg.Analytics.MaxRecords != 1000 {
		t.Errorf("Expected default max records 1000, got %d", cfg.Analytics.MaxRecords)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected default log format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: localhost
  apiPrefix: /admin
  writeTimeout: 2m
storage:
  type: sqlite
  path: /tmp/data
analytics:
  maxRecords: 500
templating:
  seed: 99
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got %q", cfg.Server.Host)
	}
	if cfg.Server.APIPrefix != "/admin" {
		t.Errorf("Expected api prefix '/admin', got %q", cfg.Server.APIPrefix)
	}
	if cfg.Server.WriteTimeout != 2*time.Minute {
		t.Errorf("Expected write timeout 2m, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Storage.Type != StorageSQLite {
		t.Errorf("Expected storage type 'sqlite', got %q", cfg.Storage.Type)
	}
	if cfg.Analytics.MaxRecords != 500 {
		t.Errorf("Expected max records 500, got %d", cfg.Analytics.MaxRecords)
	}
	if cfg.Templating.Seed != 99 {
		t.Errorf("Expected seed 99, got %d", cfg.Templating.Seed)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %q", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if cfg.Storage.DSN != "/tmp/data/mockserver.db" {
		t.Errorf("Expected sqlite dsn under storage path, got %q", cfg.Storage.DSN)
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Only override server port
	if err := os.WriteFile(configPath, []byte("server:\n  port: 3000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got %q", cfg.Server.Host)
	}
	if cfg.Storage.Type != StorageFile {
		t.Errorf("Expected default storage type 'file', got %q", cfg.Storage.Type)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  port: [invalid yaml\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"root api prefix", func(c *Config) { c.Server.APIPrefix = "/" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "redis" }, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Type = StoragePostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Type = StoragePostgres
			c.Storage.DSN = "postgres://localhost/mocks"
		}, false},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NormalizesPrefix(t *testing.T) {
	cfg := Default()
	cfg.Server.APIPrefix = "admin/"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if cfg.Server.APIPrefix != "/admin" {
		t.Errorf("Expected '/admin', got %q", cfg.Server.APIPrefix)
	}
}

func TestFromViper_EnvOverride(t *testing.T) {
	t.Setenv("MOCKSERVER_SERVER_PORT", "4321")
	t.Setenv("MOCKSERVER_STORAGE_TYPE", "memory")
	t.Setenv("MOCKSERVER_LOGGING_DEVREQUESTS", "true")

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper() failed: %v", err)
	}
	if cfg.Server.Port != 4321 {
		t.Errorf("Expected port 4321 from env, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != StorageMemory {
		t.Errorf("Expected memory storage from env, got %q", cfg.Storage.Type)
	}
	if !cfg.Logging.DevRequests {
		t.Error("Expected devRequests from env")
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("Expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
}

func TestCertStorePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/var/lib/mocks"
	if got := cfg.CertStorePath(); got != "/var/lib/mocks/certs" {
		t.Errorf("Expected '/var/lib/mocks/certs', got %q", got)
	}

	cfg.Server.TLS.StorePath = "/etc/certs"
	if got := cfg.CertStorePath(); got != "/etc/certs" {
		t.Errorf("Expected '/etc/certs', got %q", got)
	}
}
