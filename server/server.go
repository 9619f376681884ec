package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"confsync/pkg/api"
	"confsync/pkg/auth"
	"confsync/pkg/config"
	"confsync/pkg/health"
	"confsync/pkg/identity"
	"confsync/pkg/logger"
	"confsync/pkg/middleware"
	"confsync/pkg/notify"
	"confsync/pkg/protocol"
	"confsync/pkg/registry"
	"confsync/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server wires the registry, hub, dispatcher and admin API together
type Server struct {
	cfg        *config.ServerConfig
	log        *logger.Logger
	engine     *gin.Engine
	upgrader   websocket.Upgrader
	hub        *Hub
	registry   *registry.RegistryImpl
	lifecycle  *LifecycleHandler
	dispatcher *notify.DispatcherImpl
	store      storage.Store
	monitor    *health.Monitor
	httpServer *http.Server
}

// NewServer creates a fully wired server instance
func NewServer(cfg *config.ServerConfig, store storage.Store, log *logger.Logger) *Server {
	hub := NewHub(log)
	reg := registry.NewRegistry()

	s := &Server{
		cfg: cfg,
		log: log.Named("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.Websocket.ReadBufferSize,
			WriteBufferSize: cfg.Websocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking belongs to the fronting proxy
				return true
			},
		},
		hub:        hub,
		registry:   reg,
		lifecycle:  NewLifecycleHandler(reg, hub, log),
		dispatcher: notify.NewDispatcher(reg, hub, log, cfg.Notify.FanoutLimit),
		store:      store,
		monitor:    health.NewMonitor(),
	}

	s.engine = s.buildRouter()
	return s
}

// Registry exposes the connection registry for diagnostics
func (s *Server) Registry() registry.Registry {
	return s.registry
}

// Notifier exposes the notification dispatcher
func (s *Server) Notifier() notify.Notifier {
	return s.dispatcher
}

// buildRouter assembles the gin engine: middlewares, the sync endpoint and
// the admin API.
func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(s.log))
	r.Use(middleware.SecurityHeaders())
	r.Use(api.CORSMiddleware())

	r.GET("/sync", s.handleSync)

	apiHandler := api.NewHandler(s.registry, s.store, s.dispatcher, s.monitor, s.log)
	authenticator := auth.NewTokenAuthenticator(s.cfg.Admin.Token)
	apiHandler.RegisterRoutes(r, api.BearerAuthMiddleware(authenticator))

	return r
}

// handleSync upgrades a client connection and runs its session to
// completion. Identity arrives as an already-authenticated principal in
// trusted proxy headers.
func (s *Server) handleSync(c *gin.Context) {
	principal := identity.FromHeader(c.Request.Header)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WarnWithErr("websocket upgrade failed", err, "remote", c.Request.RemoteAddr)
		return
	}

	sess := newSession(
		uuid.NewString(),
		principal,
		conn,
		s.cfg.Websocket.SendBufferSize,
		time.Duration(s.cfg.Websocket.PingInterval)*time.Second,
		time.Duration(s.cfg.Websocket.WriteTimeout)*time.Second,
		s.log,
	)

	s.hub.Register(sess)
	s.lifecycle.OnConnected(sess)

	go sess.writePump()
	s.acknowledge(sess)

	readErr := sess.readLoop()

	s.lifecycle.OnDisconnected(sess, readErr)
	s.hub.Unregister(sess.ID())
	sess.Close()
}

// acknowledge tells the client its connection id and whether it is tracked
func (s *Server) acknowledge(sess *Session) {
	p := sess.Principal()
	msg, err := protocol.NewMessage(protocol.MsgTypeConnected, protocol.ConnectedPayload{
		ConnectionID: sess.ID(),
		TenantID:     p.Tenant,
		Tracked:      p.Trackable(),
	})
	if err != nil {
		return
	}
	if data, err := json.Marshal(msg); err == nil {
		_ = sess.Send(data)
	}
}

// Start begins serving on the configured address. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.engine,
	}

	s.monitor.SetComponentStatus("hub", health.StatusHealthy, "")
	if s.store != nil {
		s.monitor.SetComponentStatus("storage", health.StatusHealthy, "")
	}

	s.log.Info("server listening", "address", s.cfg.Address, "tls", s.cfg.TLS.Enabled)

	if s.cfg.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the HTTP server and closes every session
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
