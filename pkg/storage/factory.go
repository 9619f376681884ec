package storage

import (
	"fmt"

	"confsync/pkg/config"
)

// NewStore returns a concrete Store based on database configuration
func NewStore(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.DSN)
	case "mysql":
		return NewMySQLStore(cfg.DSN, cfg.MaxConnections)
	case "postgres":
		return NewPostgresStore(cfg.DSN, cfg.MaxConnections)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
