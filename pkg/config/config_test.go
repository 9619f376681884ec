package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests loading default config
func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config is nil")
	}
}

// TestLoadConfigDefaults tests default values are set
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address == "" {
		t.Error("Address should not be empty")
	}
	if cfg.Database.DSN == "" {
		t.Error("Database DSN should not be empty")
	}
	if cfg.Websocket.SendBufferSize < 1 {
		t.Error("Websocket send buffer size should be positive")
	}
	if cfg.Notify.FanoutLimit < 1 {
		t.Error("Notify fanout limit should be positive")
	}
}

// TestLoadConfigFromFile tests loading from a YAML file
func TestLoadConfigFromFile(t *testing.T) {
	content := []byte("address: \":9090\"\nlogging:\n  level: debug\nnotify:\n  fanout_limit: 8\n")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if cfg.Address != ":9090" {
		t.Errorf("Expected address :9090, got %s", cfg.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Notify.FanoutLimit != 8 {
		t.Errorf("Expected fanout limit 8, got %d", cfg.Notify.FanoutLimit)
	}
}

// TestEnvOverrides tests environment variable overrides
func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address != ":7070" {
		t.Errorf("Expected address :7070, got %s", cfg.Address)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Logging.Level)
	}
}

// TestValidateRejectsBadLevel tests validation of log levels
func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject unknown log level")
	}
}

// TestConfigString tests String() method
func TestConfigString(t *testing.T) {
	cfg := &ServerConfig{
		Address: ":8080",
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "confsync.db",
		},
	}
	s := cfg.String()
	if s == "" {
		t.Error("String() should not return empty string")
	}
}
