package storage

import (
	"database/sql"
	"errors"
	"time"

	apperrors "confsync/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store interface using SQLite backend
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config_entries (
		tenant_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (tenant_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_tenant ON config_entries(tenant_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertEntry inserts or updates an entry, bumping its revision
func (s *SQLiteStore) UpsertEntry(tenantID, key, value string) (*ConfigEntry, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRow(
		"SELECT revision FROM config_entries WHERE tenant_id = ? AND key = ?",
		tenantID, key,
	).Scan(&revision)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		revision = 1
		_, err = tx.Exec(
			"INSERT INTO config_entries (tenant_id, key, value, revision, updated_at) VALUES (?, ?, ?, ?, ?)",
			tenantID, key, value, revision, now,
		)
	case err == nil:
		revision++
		_, err = tx.Exec(
			"UPDATE config_entries SET value = ?, revision = ?, updated_at = ? WHERE tenant_id = ? AND key = ?",
			value, revision, now, tenantID, key,
		)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
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
func (s *SQLiteStore) GetEntry(tenantID, key string) (*ConfigEntry, error) {
	entry := &ConfigEntry{TenantID: tenantID, Key: key}
	err := s.db.QueryRow(
		"SELECT value, revision, updated_at FROM config_entries WHERE tenant_id = ? AND key = ?",
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
func (s *SQLiteStore) ListEntries(tenantID string) ([]*ConfigEntry, error) {
	rows, err := s.db.Query(
		"SELECT key, value, revision, updated_at FROM config_entries WHERE tenant_id = ? ORDER BY key",
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
func (s *SQLiteStore) DeleteEntry(tenantID, key string) error {
	res, err := s.db.Exec(
		"DELETE FROM config_entries WHERE tenant_id = ? AND key = ?",
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
func (s *SQLiteStore) Tenants() ([]string, error) {
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
func (s *SQLiteStore) GetStats() (tenants, entries int, err error) {
	err = s.db.QueryRow(
		"SELECT COUNT(DISTINCT tenant_id), COUNT(*) FROM config_entries",
	).Scan(&tenants, &entries)
	return tenants, entries, err
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
