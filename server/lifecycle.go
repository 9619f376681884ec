package server

import (
	"confsync/pkg/logger"
	"confsync/pkg/registry"
)

// LifecycleHandler is the glue between transport session events and
// connection tracking: it joins tenant delivery groups and keeps the
// registry in step with connects and disconnects.
//
// A session whose principal lacks a subject or tenant claim stays
// untracked: it can hold its connection open but never receives routed
// notifications. That is accepted degraded behavior, not a fault.
type LifecycleHandler struct {
	registry registry.Registry
	hub      *Hub
	log      *logger.Logger
}

// NewLifecycleHandler creates a lifecycle handler
func NewLifecycleHandler(reg registry.Registry, hub *Hub, log *logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		registry: reg,
		hub:      hub,
		log:      log.Named("lifecycle"),
	}
}

// OnConnected handles a freshly established session
func (l *LifecycleHandler) OnConnected(s *Session) {
	p := s.Principal()

	if p.Subject == "" {
		l.log.Warn("no subject identity on connect; connection will not be tracked and notifications may not work",
			"connection", s.ID())
		s.setState(StateConnected)
		return
	}
	if p.Tenant == "" {
		l.log.Warn("no tenant identity on connect; connection will not be tracked and notifications may not work",
			"connection", s.ID(), "subject", p.Subject)
		s.setState(StateConnected)
		return
	}

	l.log.Info("tracking connection",
		"tenant", p.Tenant, "email", p.Email, "subject", p.Subject, "connection", s.ID())

	l.hub.JoinGroup(p.Tenant, s.ID())
	l.registry.AddConnection(p.Tenant, p.Subject, s.ID())
	s.setState(StateConnected)
}

// OnDisconnected handles a closed session. cause carries the transport
// error that ended the connection, if any; it is observed and logged but
// never stops cleanup.
func (l *LifecycleHandler) OnDisconnected(s *Session, cause error) {
	if cause != nil {
		l.log.WarnWithErr("connection closed with transport error", cause, "connection", s.ID())
	}

	p := s.Principal()
	if p.Subject == "" || p.Tenant == "" {
		// Untracked connection: nothing to clean up
		s.setState(StateDisconnected)
		return
	}

	l.log.Info("releasing connection",
		"tenant", p.Tenant, "email", p.Email, "subject", p.Subject, "connection", s.ID())

	l.hub.LeaveGroup(p.Tenant, s.ID())
	// Full hints from the session identity keep removal on the O(1) path.
	// Synchronous form: cleanup must not be skippable by a dead request
	// context.
	l.registry.RemoveConnection(s.ID(), p.Tenant, p.Subject)
	s.setState(StateDisconnected)
}
