package errors

import "errors"

// Identity errors
var (
	// ErrMissingSubject is returned when a principal carries no subject claim
	ErrMissingSubject = errors.New("missing subject claim")

	// ErrMissingTenant is returned when a principal carries no tenant claim
	ErrMissingTenant = errors.New("missing tenant claim")
)

// Session and transport errors
var (
	// ErrSessionClosed is returned when sending to a closed session
	ErrSessionClosed = errors.New("session closed")

	// ErrSendBufferFull is returned when a session's send buffer is full
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrConnectionUnknown is returned when a connection id is not registered
	ErrConnectionUnknown = errors.New("connection unknown")
)

// Storage errors
var (
	// ErrStoreNotInitialized is returned when storage is not initialized
	ErrStoreNotInitialized = errors.New("storage not initialized")

	// ErrEntryNotFound is returned when a configuration entry does not exist
	ErrEntryNotFound = errors.New("configuration entry not found")

	// ErrDatabaseConnection is returned when database connection fails
	ErrDatabaseConnection = errors.New("database connection failed")
)

// Configuration errors
var (
	// ErrConfigNotFound is returned when configuration file is not found
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
