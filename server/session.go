package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	apperrors "confsync/pkg/errors"
	"confsync/pkg/identity"
	"confsync/pkg/logger"
	"confsync/pkg/protocol"

	"github.com/gorilla/websocket"
)

// SessionState tracks the lifecycle of one transport session
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateConnected
	StateDisconnected // terminal
)

// maxMessageSize bounds inbound frames; clients only send heartbeats
const maxMessageSize = 4096

// Session wraps a single websocket connection and its resolved principal
type Session struct {
	id        string
	principal identity.Principal
	conn      *websocket.Conn
	send      chan []byte
	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	log       *logger.Logger

	pingInterval time.Duration
	writeTimeout time.Duration
}

// newSession creates a session in the Connecting state
func newSession(id string, principal identity.Principal, conn *websocket.Conn, sendBuffer int, pingInterval, writeTimeout time.Duration, log *logger.Logger) *Session {
	s := &Session{
		id:           id,
		principal:    principal,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		log:          log.With("connection", id),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the connection id
func (s *Session) ID() string {
	return s.id
}

// Principal returns the resolved identity of the session
func (s *Session) Principal() identity.Principal {
	return s.principal
}

// State returns the current session state
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// setState advances the state machine. Disconnected is terminal; no
// transition leaves it.
func (s *Session) setState(next SessionState) {
	for {
		cur := s.state.Load()
		if SessionState(cur) == StateDisconnected {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

// Send queues a payload for delivery. Non-blocking: a full buffer drops the
// payload with an error rather than stalling the caller.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return apperrors.ErrSessionClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	default:
		return apperrors.ErrSendBufferFull
	}
}

// Close tears the session down. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateDisconnected)
		close(s.done)
		s.conn.Close()
	})
}

// readLoop consumes inbound frames until the connection drops. Clients only
// send JSON pings; everything else is ignored. Returns the error that ended
// the connection, nil for a clean close.
func (s *Session) readLoop() error {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Debug("discarding malformed client frame")
			continue
		}
		if msg.Type == protocol.MsgTypePing {
			if pong, err := protocol.NewMessage(protocol.MsgTypePong, nil); err == nil {
				if data, err := json.Marshal(pong); err == nil {
					_ = s.Send(data)
				}
			}
		}
	}
}

// writePump serializes all writes to the connection: queued payloads and
// keepalive pings. Exits when the session closes.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("write failed, closing session")
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
