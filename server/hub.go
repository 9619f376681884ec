package server

import (
	"context"
	"sync"

	apperrors "confsync/pkg/errors"
	"confsync/pkg/logger"
)

// Hub owns every live session and the tenant-named delivery groups. It is
// the transport-side send capability the notification dispatcher consumes:
// targeted sends resolve a session by connection id, group sends use the
// tenant group table as the transport-native broadcast path.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	groups   map[string]map[string]struct{}
	log      *logger.Logger
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		groups:   make(map[string]map[string]struct{}),
		log:      log.Named("hub"),
	}
}

// Register adds a session to the hub
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
}

// Unregister removes a session and any group memberships it holds
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, connectionID)
	for group, members := range h.groups {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Get returns a session by connection id
func (h *Hub) Get(connectionID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[connectionID]
	return s, ok
}

// Count returns the number of live sessions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// JoinGroup adds a connection to a named delivery group
func (h *Hub) JoinGroup(group, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.groups[group]
	if members == nil {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connectionID] = struct{}{}
}

// LeaveGroup removes a connection from a named delivery group
func (h *Hub) LeaveGroup(group, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// SendToConnection delivers a payload to one connection
func (h *Hub) SendToConnection(ctx context.Context, connectionID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s, ok := h.Get(connectionID)
	if !ok {
		return apperrors.ErrConnectionUnknown
	}
	return s.Send(data)
}

// SendToGroup delivers a payload to every member of a delivery group
func (h *Hub) SendToGroup(ctx context.Context, group string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, s := range h.groupMembers(group) {
		if err := s.Send(data); err != nil {
			h.log.WarnWithErr("group send failed", err, "group", group, "connection", s.ID())
		}
	}
	return nil
}

// SendToAll delivers a payload to every live session
func (h *Hub) SendToAll(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, s := range h.allSessions() {
		if err := s.Send(data); err != nil {
			h.log.WarnWithErr("broadcast send failed", err, "connection", s.ID())
		}
	}
	return nil
}

// CloseAll tears down every session, for shutdown
func (h *Hub) CloseAll() {
	for _, s := range h.allSessions() {
		s.Close()
	}
}

// groupMembers snapshots the sessions of one group
func (h *Hub) groupMembers(group string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.groups[group]
	out := make([]*Session, 0, len(members))
	for id := range members {
		if s, ok := h.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// allSessions snapshots every live session
func (h *Hub) allSessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}
