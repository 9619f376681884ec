package protocol

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	// Server-to-client notification messages
	MsgTypeConfigurationChange MessageType = "configuration_change"
	MsgTypeNotification        MessageType = "notification"

	// Session handshake messages
	MsgTypeConnected MessageType = "connected"

	// Heartbeat and status
	MsgTypePing  MessageType = "ping"
	MsgTypePong  MessageType = "pong"
	MsgTypeError MessageType = "error"
)

// Message is the base structure for all messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ConfigurationChangePayload announces a changed configuration entry
type ConfigurationChangePayload struct {
	TenantID  string    `json:"tenant_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectedPayload acknowledges a tracked session
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
	TenantID     string `json:"tenant_id,omitempty"`
	Tracked      bool   `json:"tracked"`
}

// ErrorPayload carries a transport-level error report
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a message with a marshaled payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &Message{
		Type:      msgType,
		ID:        GenerateID(),
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// GenerateID generates a unique message ID
func GenerateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
