// Package storage provides persistent storage for tenant configuration
// entries behind a backend-agnostic Store interface.
//
// Three backends are provided: SQLite (the default, zero-setup), MySQL and
// PostgreSQL. Every entry carries a monotonically increasing revision that
// is bumped on each upsert; change notifications reference that revision so
// clients can detect missed updates.
package storage
