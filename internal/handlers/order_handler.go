package handlers

import (
	"net/http"
	"strconv"

	"erp-sync-service/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler exposes synced orders for inspection
type OrderHandler struct {
	orders *repository.OrderRepository
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *repository.OrderRepository) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List returns recent orders for an integration
func (h *OrderHandler) List(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.orders.ListByIntegration(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": len(orders)})
}

// Get returns one order with its lines
func (h *OrderHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	order, err := h.orders.GetByExternalCode(c.Request.Context(), id, c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
