package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"confsync/pkg/config"
	"confsync/pkg/identity"
	"confsync/pkg/logger"
	"confsync/pkg/protocol"
	"confsync/pkg/storage"

	"github.com/gorilla/websocket"
)

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "test.db")
	cfg.Admin.Token = testAdminToken

	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer(cfg, store, logger.Get())
	ts := httptest.NewServer(srv.engine)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.hub.CloseAll)

	return srv, ts
}

// dialSync opens a websocket to /sync with proxy identity headers and
// consumes the connected acknowledgement.
func dialSync(t *testing.T, ts *httptest.Server, email, subject, tenant string) (*websocket.Conn, protocol.ConnectedPayload) {
	t.Helper()

	header := http.Header{}
	if email != "" {
		header.Set(identity.HeaderEmail, email)
	}
	if subject != "" {
		header.Set(identity.HeaderSubject, subject)
	}
	if tenant != "" {
		header.Set(identity.HeaderTenant, tenant)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sync"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("failed to dial sync endpoint: %v", err)
	}

	msg := readNext(t, conn, 2*time.Second)
	if msg.Type != protocol.MsgTypeConnected {
		t.Fatalf("expected connected ack, got %q", msg.Type)
	}
	var ack protocol.ConnectedPayload
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		t.Fatalf("failed to decode connected payload: %v", err)
	}
	return conn, ack
}

// readNext reads one message, failing the test on timeout or decode error
func readNext(t *testing.T, conn *websocket.Conn, timeout time.Duration) protocol.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

// expectSilence asserts that no message arrives within the window
func expectSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(window))
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no message, got: %s", raw)
	}
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// waitForConnections polls until the registry reaches the expected count
func waitForConnections(t *testing.T, srv *Server, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.registry.ConnectionCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d connections, have %d", want, srv.registry.ConnectionCount())
}

func TestSyncHandshakeTracked(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, ack := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer conn.Close()

	if !ack.Tracked {
		t.Error("expected session to be tracked")
	}
	if ack.ConnectionID == "" {
		t.Error("expected a connection id in the ack")
	}
	if ack.TenantID != "tenant-a" {
		t.Errorf("expected tenant-a in ack, got %q", ack.TenantID)
	}

	waitForConnections(t, srv, 1)
	conns := srv.registry.GetConnections("tenant-a", "alice-sub")
	if len(conns) != 1 || conns[0] != ack.ConnectionID {
		t.Errorf("registry should hold the acked connection, got %v", conns)
	}
}

func TestSyncHandshakeWithoutSubjectIsUntracked(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, ack := dialSync(t, ts, "anon@example.com", "", "tenant-a")
	defer conn.Close()

	if ack.Tracked {
		t.Error("session without subject should not be tracked")
	}
	if srv.registry.ConnectionCount() != 0 {
		t.Errorf("untracked session must not appear in registry, have %d", srv.registry.ConnectionCount())
	}
}

func TestSyncPingPong(t *testing.T) {
	_, ts := newTestServer(t)

	conn, _ := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer conn.Close()

	ping, err := protocol.NewMessage(protocol.MsgTypePing, nil)
	if err != nil {
		t.Fatalf("failed to build ping: %v", err)
	}
	data, _ := json.Marshal(ping)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to write ping: %v", err)
	}

	msg := readNext(t, conn, 2*time.Second)
	if msg.Type != protocol.MsgTypePong {
		t.Errorf("expected pong, got %q", msg.Type)
	}
}

func TestConfigChangeFanoutWithExclusion(t *testing.T) {
	srv, ts := newTestServer(t)

	// alice has two tabs open, bob has one
	alice1, _ := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer alice1.Close()
	alice2, _ := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer alice2.Close()
	bob, _ := dialSync(t, ts, "bob@example.com", "bob-sub", "tenant-a")
	defer bob.Close()

	waitForConnections(t, srv, 3)

	resp := doJSON(t, ts, http.MethodPut,
		"/api/tenants/tenant-a/config/feature-flag?exclude=alice-sub",
		map[string]string{"value": "on"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from config upsert, got %d", resp.StatusCode)
	}

	msg := readNext(t, bob, 2*time.Second)
	if msg.Type != protocol.MsgTypeConfigurationChange {
		t.Fatalf("expected configuration_change, got %q", msg.Type)
	}
	var change protocol.ConfigurationChangePayload
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		t.Fatalf("failed to decode change payload: %v", err)
	}
	if change.Key != "feature-flag" || change.Value != "on" {
		t.Errorf("unexpected change payload: %+v", change)
	}
	if change.Revision != 1 {
		t.Errorf("first upsert should carry revision 1, got %d", change.Revision)
	}

	// The initiating client's own tabs are excluded from the echo
	expectSilence(t, alice1, 300*time.Millisecond)
	expectSilence(t, alice2, 300*time.Millisecond)
}

func TestNotifyClientReachesEveryTab(t *testing.T) {
	srv, ts := newTestServer(t)

	alice1, _ := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer alice1.Close()
	alice2, _ := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer alice2.Close()

	waitForConnections(t, srv, 2)

	resp := doJSON(t, ts, http.MethodPost,
		"/api/tenants/tenant-a/clients/alice-sub/notify",
		map[string]any{"type": "notification", "payload": map[string]string{"text": "hello"}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 from notify, got %d", resp.StatusCode)
	}

	for i, conn := range []*websocket.Conn{alice1, alice2} {
		msg := readNext(t, conn, 2*time.Second)
		if msg.Type != protocol.MsgTypeNotification {
			t.Errorf("tab %d: expected notification, got %q", i+1, msg.Type)
		}
	}
}

func TestDisconnectPrunesRegistry(t *testing.T) {
	srv, ts := newTestServer(t)

	alice1, ack1 := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	alice2, _ := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	defer alice2.Close()

	waitForConnections(t, srv, 2)

	alice1.Close()
	waitForConnections(t, srv, 1)

	conns := srv.registry.GetConnections("tenant-a", "alice-sub")
	if len(conns) != 1 {
		t.Fatalf("expected one surviving connection, got %v", conns)
	}
	if conns[0] == ack1.ConnectionID {
		t.Error("closed connection should have been removed from registry")
	}

	// The survivor still receives targeted notifications
	resp := doJSON(t, ts, http.MethodPost,
		"/api/tenants/tenant-a/clients/alice-sub/notify",
		map[string]any{"type": "notification", "payload": map[string]string{"text": "still here"}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 from notify, got %d", resp.StatusCode)
	}
	msg := readNext(t, alice2, 2*time.Second)
	if msg.Type != protocol.MsgTypeNotification {
		t.Errorf("expected notification on surviving tab, got %q", msg.Type)
	}
}

func TestAdminAPIRequiresToken(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/connections", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestHealthEndpointOpen(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from health, got %d", resp.StatusCode)
	}
}

func TestInstanceManagerPIDFile(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	im := NewInstanceManager()
	if im.PIDFile() == "" {
		t.Fatal("PID file path should not be empty")
	}

	if err := im.WritePID(); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}
	defer im.RemovePID()

	pid, err := im.ReadPID()
	if err != nil {
		t.Fatalf("failed to read PID file: %v", err)
	}
	if pid <= 0 {
		t.Errorf("expected positive PID, got %d", pid)
	}

	running, gotPID := im.IsRunning()
	if !running {
		t.Error("current process should be detected as running")
	}
	if gotPID != pid {
		t.Errorf("expected PID %d, got %d", pid, gotPID)
	}

	im.RemovePID()
	if running, _ := im.IsRunning(); running {
		t.Error("removed PID file should report not running")
	}
}

func TestSessionStateMachine(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, ack := dialSync(t, ts, "alice@example.com", "alice-sub", "tenant-a")
	waitForConnections(t, srv, 1)

	sess, ok := srv.hub.Get(ack.ConnectionID)
	if !ok {
		t.Fatal("hub should hold the session")
	}
	if sess.State() != StateConnected {
		t.Errorf("expected Connected state, got %v", sess.State())
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == StateDisconnected {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if sess.State() != StateDisconnected {
		t.Fatal("session never reached Disconnected state")
	}

	// Terminal: nothing moves a disconnected session back
	sess.setState(StateConnected)
	if sess.State() != StateDisconnected {
		t.Error("Disconnected must be terminal")
	}

	if err := sess.Send([]byte("late")); err == nil {
		t.Error("send on closed session should fail")
	}
}

func TestSendBufferOverflowDropsPayload(t *testing.T) {
	// No writePump draining: the second queued payload must be rejected,
	// not block the caller.
	s := newSession("buf-test", identity.Principal{}, nil, 1, time.Second, time.Second, logger.Get())

	if err := s.Send([]byte("first")); err != nil {
		t.Fatalf("first send should fit the buffer: %v", err)
	}
	if err := s.Send([]byte("second")); err == nil {
		t.Error("send into a full buffer should fail")
	}
}
