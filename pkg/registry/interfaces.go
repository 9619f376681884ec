package registry

import "context"

// ClientKey identifies a connected client for diagnostics
type ClientKey struct {
	TenantID    string `json:"tenant_id"`
	SubjectID   string `json:"subject_id"`
	Connections int    `json:"connections"`
}

// Registry tracks connected clients per tenant
type Registry interface {
	// AddConnection records a connection for a (tenant, subject) pair.
	// Adding the same triple twice is a no-op.
	AddConnection(tenantID, subjectID, connectionID string)
	// AddConnectionContext is the context-accepting form of AddConnection
	AddConnectionContext(ctx context.Context, tenantID, subjectID, connectionID string) error
	// RemoveConnection removes a connection. Tenant and subject are optional
	// hints; when empty the registry locates the connection itself.
	// Removing an absent connection is a no-op.
	RemoveConnection(connectionID, tenantID, subjectID string)
	// RemoveConnectionContext is the context-accepting form of RemoveConnection
	RemoveConnectionContext(ctx context.Context, connectionID, tenantID, subjectID string) error
	// GetConnections returns a copy of the connection set for one client.
	// An unknown client yields an empty slice, not an error.
	GetConnections(tenantID, subjectID string) []string
	// GetConnectionsContext is the context-accepting form of GetConnections
	GetConnectionsContext(ctx context.Context, tenantID, subjectID string) ([]string, error)
	// FindTenantConnections returns every connection id under a tenant,
	// excluding those owned by excludeSubjectID when non-empty.
	FindTenantConnections(tenantID, excludeSubjectID string) []string
	// FindTenantConnectionsContext is the context-accepting form of FindTenantConnections
	FindTenantConnectionsContext(ctx context.Context, tenantID, excludeSubjectID string) ([]string, error)
	// ConnectedClients enumerates every (tenant, subject) pair currently
	// holding at least one connection. Diagnostics only.
	ConnectedClients() []ClientKey
	// ConnectionCount returns the number of tracked connections
	ConnectionCount() int
}
