package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "confsync/pkg/errors"
	"confsync/pkg/health"
	"confsync/pkg/logger"
	"confsync/pkg/notify"
	"confsync/pkg/protocol"
	"confsync/pkg/registry"
	"confsync/pkg/storage"

	"github.com/gin-gonic/gin"
)

// Handler encapsulates the admin API handlers
type Handler struct {
	registry registry.Registry
	store    storage.Store
	notifier notify.Notifier
	monitor  *health.Monitor
	log      *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(reg registry.Registry, store storage.Store, notifier notify.Notifier, monitor *health.Monitor, log *logger.Logger) *Handler {
	return &Handler{
		registry: reg,
		store:    store,
		notifier: notifier,
		monitor:  monitor,
		log:      log.Named("api"),
	}
}

// RegisterRoutes mounts the admin API under /api
func (h *Handler) RegisterRoutes(r gin.IRouter, authMW gin.HandlerFunc) {
	api := r.Group("/api")
	api.GET("/health", h.handleHealth)

	protected := api.Group("", authMW)
	protected.GET("/connections", h.handleConnections)
	protected.GET("/tenants/:tenant/config", h.handleListConfig)
	protected.PUT("/tenants/:tenant/config/:key", h.handleUpsertConfig)
	protected.DELETE("/tenants/:tenant/config/:key", h.handleDeleteConfig)
	protected.POST("/tenants/:tenant/notify", h.handleNotifyTenant)
	protected.POST("/tenants/:tenant/clients/:subject/notify", h.handleNotifyClient)
}

// handleHealth reports server health
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetHealth(h.registry.ConnectionCount()))
}

// handleConnections lists currently connected clients for diagnostics
func (h *Handler) handleConnections(c *gin.Context) {
	clients := h.registry.ConnectedClients()
	c.JSON(http.StatusOK, gin.H{
		"total":   h.registry.ConnectionCount(),
		"clients": clients,
	})
}

// handleListConfig returns the stored configuration of a tenant
func (h *Handler) handleListConfig(c *gin.Context) {
	tenantID := c.Param("tenant")

	entries, err := h.store.ListEntries(tenantID)
	if err != nil {
		h.log.ErrorWithErr("failed to list config entries", err, "tenant", tenantID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if entries == nil {
		entries = []*storage.ConfigEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "entries": entries})
}

type upsertConfigRequest struct {
	Value string `json:"value" binding:"required"`
}

// handleUpsertConfig stores a configuration entry, then notifies the
// tenant's connected clients of the change. The optional exclude query
// parameter names a subject whose own sessions should not be echoed to.
func (h *Handler) handleUpsertConfig(c *gin.Context) {
	tenantID := c.Param("tenant")
	key := c.Param("key")

	var req upsertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	entry, err := h.store.UpsertEntry(tenantID, key, req.Value)
	if err != nil {
		h.log.ErrorWithErr("failed to upsert config entry", err, "tenant", tenantID, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	h.notifyChange(c, entry, c.Query("exclude"))
	c.JSON(http.StatusOK, entry)
}

// handleDeleteConfig removes an entry and notifies the tenant
func (h *Handler) handleDeleteConfig(c *gin.Context) {
	tenantID := c.Param("tenant")
	key := c.Param("key")

	if err := h.store.DeleteEntry(tenantID, key); err != nil {
		if errors.Is(err, apperrors.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		h.log.ErrorWithErr("failed to delete config entry", err, "tenant", tenantID, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	h.notifyChange(c, &storage.ConfigEntry{TenantID: tenantID, Key: key}, c.Query("exclude"))
	c.Status(http.StatusNoContent)
}

// notifyChange broadcasts a configuration_change for an entry. Notification
// failure never fails the API call that caused the change.
func (h *Handler) notifyChange(c *gin.Context, entry *storage.ConfigEntry, excludeSubject string) {
	payload, err := json.Marshal(protocol.ConfigurationChangePayload{
		TenantID:  entry.TenantID,
		Key:       entry.Key,
		Value:     entry.Value,
		Revision:  entry.Revision,
		UpdatedAt: entry.UpdatedAt,
	})
	if err != nil {
		h.log.ErrorWithErr("failed to marshal change payload", err, "tenant", entry.TenantID)
		return
	}

	n := notify.Notification{
		TenantID:  entry.TenantID,
		Recipient: notify.RecipientAll,
		Type:      protocol.MsgTypeConfigurationChange,
		Payload:   payload,
	}
	if err := h.notifier.NotifyAll(c.Request.Context(), n, excludeSubject); err != nil {
		h.log.WarnWithErr("change notification failed", err, "tenant", entry.TenantID, "key", entry.Key)
	}
}

type notifyRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload" binding:"required"`
	Exclude string          `json:"exclude"`
}

// handleNotifyTenant broadcasts an arbitrary notification to a tenant
func (h *Handler) handleNotifyTenant(c *gin.Context) {
	tenantID := c.Param("tenant")

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}

	n := notify.Notification{
		TenantID:  tenantID,
		Recipient: notify.RecipientAll,
		Type:      protocol.MessageType(req.Type),
		Payload:   req.Payload,
	}
	if err := h.notifier.NotifyAll(c.Request.Context(), n, req.Exclude); err != nil {
		h.log.ErrorWithErr("tenant notification failed", err, "tenant", tenantID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"tenant_id": tenantID})
}

// handleNotifyClient sends a notification to one client's sessions
func (h *Handler) handleNotifyClient(c *gin.Context) {
	tenantID := c.Param("tenant")
	subjectID := c.Param("subject")

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}

	n := notify.Notification{
		TenantID:  tenantID,
		Recipient: subjectID,
		Type:      protocol.MessageType(req.Type),
		Payload:   req.Payload,
	}
	if err := h.notifier.NotifyClient(c.Request.Context(), n); err != nil {
		h.log.ErrorWithErr("client notification failed", err, "tenant", tenantID, "subject", subjectID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"tenant_id":   tenantID,
		"subject_id":  subjectID,
		"connections": len(h.registry.GetConnections(tenantID, subjectID)),
	})
}
