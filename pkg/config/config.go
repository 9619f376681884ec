package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address   string          `yaml:"address"`
	TLS       TLSConfig       `yaml:"tls"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Websocket WebsocketConfig `yaml:"websocket"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	BehindProxy bool   `yaml:"behind_proxy"`
}

// AdminConfig represents admin API settings
type AdminConfig struct {
	Token string `yaml:"token"`
}

// DatabaseConfig represents database settings
type DatabaseConfig struct {
	Type              string `yaml:"type"` // sqlite | mysql | postgres
	DSN               string `yaml:"dsn"`  // file path for sqlite, DSN otherwise
	MaxConnections    int    `yaml:"max_connections"`
	ConnectionTimeout int    `yaml:"connection_timeout"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebsocketConfig represents websocket transport settings
type WebsocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
	SendBufferSize  int `yaml:"send_buffer_size"`
	PingInterval    int `yaml:"ping_interval_seconds"`
	WriteTimeout    int `yaml:"write_timeout_seconds"`
}

// NotifyConfig represents notification dispatch settings
type NotifyConfig struct {
	FanoutLimit int `yaml:"fanout_limit"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":8080",
		TLS: TLSConfig{
			Enabled:     false,
			CertFile:    "",
			KeyFile:     "",
			BehindProxy: false,
		},
		Admin: AdminConfig{
			Token: "",
		},
		Database: DatabaseConfig{
			Type:              "sqlite",
			DSN:               "./confsync.db",
			MaxConnections:    25,
			ConnectionTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Websocket: WebsocketConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			SendBufferSize:  256,
			PingInterval:    30,
			WriteTimeout:    10,
		},
		Notify: NotifyConfig{
			FanoutLimit: 64,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}

	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		config.Admin.Token = token
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}

	if maxConns := os.Getenv("DB_MAX_CONNECTIONS"); maxConns != "" {
		if val, err := strconv.Atoi(maxConns); err == nil {
			config.Database.MaxConnections = val
		}
	}

	if limit := os.Getenv("NOTIFY_FANOUT_LIMIT"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			config.Notify.FanoutLimit = val
		}
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Websocket.SendBufferSize < 1 {
		return fmt.Errorf("websocket send buffer size must be at least 1")
	}

	if c.Notify.FanoutLimit < 1 {
		return fmt.Errorf("notify fanout limit must be at least 1")
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// GetDatabasePath returns the absolute database path for sqlite databases
func (c *ServerConfig) GetDatabasePath() string {
	if filepath.IsAbs(c.Database.DSN) {
		return c.Database.DSN
	}
	return filepath.Join(os.Getenv("PWD"), c.Database.DSN)
}

// String returns a string representation of the configuration (for logging)
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, DB: %s/%s, TLS: %v, LogLevel: %s}",
		c.Address, c.Database.Type, c.Database.DSN, c.TLS.Enabled, c.Logging.Level)
}
