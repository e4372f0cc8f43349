package handlers

import (
	"net/http"

	"erp-sync-service/internal/models"
	"erp-sync-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IntegrationHandler handles integration connection endpoints
type IntegrationHandler struct {
	integrations services.IntegrationStore
	sync         *services.SyncService
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(integrations services.IntegrationStore, sync *services.SyncService) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, sync: sync}
}

// CreateIntegrationRequest is the payload for creating an integration
type CreateIntegrationRequest struct {
	PlatformType                 models.PlatformType    `json:"platformType" binding:"required"`
	DisplayName                  string                 `json:"displayName" binding:"required"`
	Endpoint                     string                 `json:"endpoint"`
	Credentials                  map[string]interface{} `json:"credentials"`
	SecretReference              string                 `json:"secretReference"`
	WebhookSecret                string                 `json:"webhookSecret"`
	WarehouseID                  *uuid.UUID             `json:"warehouseId"`
	MaxRetries                   int                    `json:"maxRetries"`
	OrderSyncIntervalMinutes     int                    `json:"orderSyncIntervalMinutes"`
	InventorySyncIntervalMinutes int                    `json:"inventorySyncIntervalMinutes"`
	StatusSyncIntervalMinutes    int                    `json:"statusSyncIntervalMinutes"`
}

// List returns all integrations
func (h *IntegrationHandler) List(c *gin.Context) {
	integrations, err := h.integrations.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": integrations, "total": len(integrations)})
}

// Create creates a new integration
func (h *IntegrationHandler) Create(c *gin.Context) {
	var req CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	integration := &models.IntegrationConnection{
		PlatformType:    req.PlatformType,
		DisplayName:     req.DisplayName,
		Endpoint:        req.Endpoint,
		Credentials:     models.JSONB(req.Credentials),
		SecretReference: req.SecretReference,
		WebhookSecret:   req.WebhookSecret,
		WarehouseID:     req.WarehouseID,
		SyncEnabled:     true,
	}
	if req.MaxRetries > 0 {
		integration.MaxRetries = req.MaxRetries
	}
	if req.OrderSyncIntervalMinutes > 0 {
		integration.OrderSyncIntervalMinutes = req.OrderSyncIntervalMinutes
	}
	if req.InventorySyncIntervalMinutes > 0 {
		integration.InventorySyncIntervalMinutes = req.InventorySyncIntervalMinutes
	}
	if req.StatusSyncIntervalMinutes > 0 {
		integration.StatusSyncIntervalMinutes = req.StatusSyncIntervalMinutes
	}

	if err := h.integrations.Create(c.Request.Context(), integration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": integration})
}

// Get returns a single integration
func (h *IntegrationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	integration, err := h.integrations.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": integration})
}

// Update patches integration settings
func (h *IntegrationHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	integration, err := h.integrations.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		return
	}

	var req CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DisplayName != "" {
		integration.DisplayName = req.DisplayName
	}
	if req.Endpoint != "" {
		integration.Endpoint = req.Endpoint
	}
	if req.Credentials != nil {
		integration.Credentials = models.JSONB(req.Credentials)
	}
	if req.SecretReference != "" {
		integration.SecretReference = req.SecretReference
	}
	if req.WebhookSecret != "" {
		integration.WebhookSecret = req.WebhookSecret
	}
	if req.WarehouseID != nil {
		integration.WarehouseID = req.WarehouseID
	}
	if req.MaxRetries > 0 {
		integration.MaxRetries = req.MaxRetries
	}
	if req.OrderSyncIntervalMinutes > 0 {
		integration.OrderSyncIntervalMinutes = req.OrderSyncIntervalMinutes
	}
	if req.InventorySyncIntervalMinutes > 0 {
		integration.InventorySyncIntervalMinutes = req.InventorySyncIntervalMinutes
	}
	if req.StatusSyncIntervalMinutes > 0 {
		integration.StatusSyncIntervalMinutes = req.StatusSyncIntervalMinutes
	}

	if err := h.integrations.Update(c.Request.Context(), integration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": integration})
}

// Delete removes an integration
func (h *IntegrationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.integrations.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

// TestConnection performs a live credential check
func (h *IntegrationHandler) TestConnection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.sync.TestConnection(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "failed", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// RefreshCredentials forces a token refresh
func (h *IntegrationHandler) RefreshCredentials(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.sync.RefreshCredentials(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

// Enable re-enables a disabled integration and clears its error state
func (h *IntegrationHandler) Enable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.integrations.SetSyncEnabled(c.Request.Context(), id, true, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}
