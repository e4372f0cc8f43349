package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"erp-sync-service/internal/repository"
	"erp-sync-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Signature header names by platform convention.
const (
	headerShopifyHMAC = "X-Shopify-Hmac-Sha256"
	headerSignature   = "X-Signature"
)

// WebhookHandler handles inbound platform webhooks
type WebhookHandler struct {
	webhooks *services.WebhookService
	events   *repository.WebhookRepository
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhooks *services.WebhookService, events *repository.WebhookRepository) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, events: events}
}

// Handle ingests one webhook delivery for the integration in the path. The
// raw body is read before any parsing so the HMAC covers exactly what was
// sent.
func (h *WebhookHandler) Handle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid integration id"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(headerShopifyHMAC)
	if signature == "" {
		signature = c.GetHeader(headerSignature)
	}

	if err := h.webhooks.Ingest(c.Request.Context(), id, payload, signature); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// ListPending returns stored events that have not been processed yet, oldest
// first, for operator inspection.
func (h *WebhookHandler) ListPending(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	events, err := h.events.ListUnprocessed(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "total": len(events)})
}
