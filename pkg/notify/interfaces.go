package notify

import (
	"context"
	"encoding/json"

	"confsync/pkg/protocol"
)

// RecipientAll is the routing-key sentinel for tenant-wide broadcast
const RecipientAll = "*"

// Notification is a tagged envelope: routing metadata plus an opaque payload.
// Recipient is a subject id, or RecipientAll for every client of the tenant.
type Notification struct {
	TenantID  string               `json:"tenant_id"`
	Recipient string               `json:"recipient"`
	Type      protocol.MessageType `json:"type"`
	Payload   json.RawMessage      `json:"payload"`
}

// Broadcast reports whether the notification targets the whole tenant
func (n Notification) Broadcast() bool {
	return n.Recipient == "" || n.Recipient == RecipientAll
}

// Sender is the transport-level send capability consumed by the dispatcher.
// Sends are best effort; no delivery acknowledgment is modeled.
type Sender interface {
	// SendToConnection delivers a payload to one connection
	SendToConnection(ctx context.Context, connectionID string, data []byte) error
	// SendToGroup delivers a payload to a named transport group
	SendToGroup(ctx context.Context, group string, data []byte) error
	// SendToAll delivers a payload to every connection
	SendToAll(ctx context.Context, data []byte) error
}

// Lookup is the slice of the registry the dispatcher needs
type Lookup interface {
	GetConnections(tenantID, subjectID string) []string
	FindTenantConnections(tenantID, excludeSubjectID string) []string
}

// Notifier sends notifications to connected clients
type Notifier interface {
	// NotifyClient sends a notification to every connection of one client
	NotifyClient(ctx context.Context, n Notification) error
	// NotifyAll sends a notification to every client of the tenant,
	// excluding excludeSubjectID's connections when non-empty
	NotifyAll(ctx context.Context, n Notification, excludeSubjectID string) error
}
