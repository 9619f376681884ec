package storage

import "time"

// ConfigEntry is one tenant-scoped configuration value
type ConfigEntry struct {
	TenantID  string    `json:"tenant_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for persistent storage operations
type Store interface {
	// UpsertEntry inserts or updates an entry, bumping its revision
	UpsertEntry(tenantID, key, value string) (*ConfigEntry, error)
	// GetEntry retrieves one entry; ErrEntryNotFound when absent
	GetEntry(tenantID, key string) (*ConfigEntry, error)
	// ListEntries returns all entries for a tenant ordered by key
	ListEntries(tenantID string) ([]*ConfigEntry, error)
	// DeleteEntry removes an entry; ErrEntryNotFound when absent
	DeleteEntry(tenantID, key string) error
	// Tenants returns every tenant id with at least one entry
	Tenants() ([]string, error)
	// GetStats returns tenant and entry counts
	GetStats() (tenants, entries int, err error)

	// Lifecycle
	Close() error
}
