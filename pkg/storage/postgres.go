package storage

import (
	"database/sql"
	"errors"
	"time"

	apperrors "confsync/pkg/errors"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store interface using PostgreSQL backend
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(dsn string, maxConns int) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.ErrDatabaseConnection
	}

	store := &PostgresStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config_entries (
		tenant_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		revision BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, key)
	)`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertEntry inserts or updates an entry, bumping its revision
func (s *PostgresStore) UpsertEntry(tenantID, key, value string) (*ConfigEntry, error) {
	now := time.Now().UTC()

	var revision int64
	err := s.db.QueryRow(
		`INSERT INTO config_entries (tenant_id, key, value, revision, updated_at)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (tenant_id, key) DO UPDATE
		 SET value = EXCLUDED.value,
		     revision = config_entries.revision + 1,
		     updated_at = EXCLUDED.updated_at
		 RETURNING revision`,
		tenantID, key, value, now,
	).Scan(&revision)
	if err != nil {
		return nil, err
	}

	return &ConfigEntry{
		TenantID:  tenantID,
		Key:       key,
		Value:     value,
		Revision:  revision,
		UpdatedAt: now,
	}, nil
}

// GetEntry retrieves one entry
func (s *PostgresStore) GetEntry(tenantID, key string) (*ConfigEntry, error) {
	entry := &ConfigEntry{TenantID: tenantID, Key: key}
	err := s.db.QueryRow(
		"SELECT value, revision, updated_at FROM config_entries WHERE tenant_id = $1 AND key = $2",
		tenantID, key,
	).Scan(&entry.Value, &entry.Revision, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns all entries for a tenant ordered by key
func (s *PostgresStore) ListEntries(tenantID string) ([]*ConfigEntry, error) {
	rows, err := s.db.Query(
		"SELECT key, value, revision, updated_at FROM config_entries WHERE tenant_id = $1 ORDER BY key",
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ConfigEntry
	for rows.Next() {
		entry := &ConfigEntry{TenantID: tenantID}
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.Revision, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntry removes an entry
func (s *PostgresStore) DeleteEntry(tenantID, key string) error {
	res, err := s.db.Exec(
		"DELETE FROM config_entries WHERE tenant_id = $1 AND key = $2",
		tenantID, key,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrEntryNotFound
	}
	return nil
}

// Tenants returns every tenant id with at least one entry
func (s *PostgresStore) Tenants() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT tenant_id FROM config_entries ORDER BY tenant_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// GetStats returns tenant and entry counts
func (s *PostgresStore) GetStats() (tenants, entries int, err error) {
	err = s.db.QueryRow(
		"SELECT COUNT(DISTINCT tenant_id), COUNT(*) FROM config_entries",
	).Scan(&tenants, &entries)
	return tenants, entries, err
}

// Close closes the underlying database
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
