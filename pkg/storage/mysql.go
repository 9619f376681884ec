package storage

import (
	"database/sql"
	"errors"
	"time"

	apperrors "confsync/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store interface using MySQL backend
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store. The DSN must include
// parseTime=true so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string, maxConns int) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.ErrDatabaseConnection
	}

	store := &MySQLStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config_entries (
		tenant_id VARCHAR(128) NOT NULL,
		` + "`key`" + ` VARCHAR(255) NOT NULL,
		value TEXT NOT NULL,
		revision BIGINT NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (tenant_id, ` + "`key`" + `)
	)`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertEntry inserts or updates an entry, bumping its revision
func (s *MySQLStore) UpsertEntry(tenantID, key, value string) (*ConfigEntry, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRow(
		"SELECT revision FROM config_entries WHERE tenant_id = ? AND `key` = ? FOR UPDATE",
		tenantID, key,
	).Scan(&revision)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		revision = 1
		_, err = tx.Exec(
			"INSERT INTO config_entries (tenant_id, `key`, value, revision, updated_at) VALUES (?, ?, ?, ?, ?)",
			tenantID, key, value, revision, now,
		)
	case err == nil:
		revision++
		_, err = tx.Exec(
			"UPDATE config_entries SET value = ?, revision = ?, updated_at = ? WHERE tenant_id = ? AND `key` = ?",
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
func (s *MySQLStore) GetEntry(tenantID, key string) (*ConfigEntry, error) {
	entry := &ConfigEntry{TenantID: tenantID, Key: key}
	err := s.db.QueryRow(
		"SELECT value, revision, updated_at FROM config_entries WHERE tenant_id = ? AND `key` = ?",
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
func (s *MySQLStore) ListEntries(tenantID string) ([]*ConfigEntry, error) {
	rows, err := s.db.Query(
		"SELECT `key`, value, revision, updated_at FROM config_entries WHERE tenant_id = ? ORDER BY `key`",
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
func (s *MySQLStore) DeleteEntry(tenantID, key string) error {
	res, err := s.db.Exec(
		"DELETE FROM config_entries WHERE tenant_id = ? AND `key` = ?",
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
func (s *MySQLStore) Tenants() ([]string, error) {
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
func (s *MySQLStore) GetStats() (tenants, entries int, err error) {
	err = s.db.QueryRow(
		"SELECT COUNT(DISTINCT tenant_id), COUNT(*) FROM config_entries",
	).Scan(&tenants, &entries)
	return tenants, entries, err
}

// Close closes the underlying database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
