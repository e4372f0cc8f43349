package handlers

import (
	"errors"
	"net/http"
	"time"

	"erp-sync-service/internal/models"
	"erp-sync-service/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryHandler handles warehouse and stock endpoints
type InventoryHandler struct {
	inventory *repository.InventoryRepository
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory *repository.InventoryRepository) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// ListWarehouses returns every warehouse
func (h *InventoryHandler) ListWarehouses(c *gin.Context) {
	warehouses, err := h.inventory.ListWarehouses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": warehouses, "total": len(warehouses)})
}

// CreateWarehouseRequest is the payload for creating a warehouse
type CreateWarehouseRequest struct {
	Code     string     `json:"code" binding:"required"`
	Name     string     `json:"name" binding:"required"`
	ParentID *uuid.UUID `json:"parentId"`
}

// CreateWarehouse adds a warehouse
func (h *InventoryHandler) CreateWarehouse(c *gin.Context) {
	var req CreateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ParentID != nil {
		if _, err := h.inventory.GetWarehouse(c.Request.Context(), *req.ParentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "parent warehouse not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	warehouse := &models.Warehouse{Code: req.Code, Name: req.Name, ParentID: req.ParentID}
	if err := h.inventory.CreateWarehouse(c.Request.Context(), warehouse); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": warehouse})
}

// AdjustStockRequest is the payload for writing a stock position
type AdjustStockRequest struct {
	ItemKey     uuid.UUID `json:"itemKey" binding:"required"`
	SKU         string    `json:"sku" binding:"required"`
	WarehouseID uuid.UUID `json:"warehouseId" binding:"required"`
	ActualQty   float64   `json:"actualQty"`
	ReservedQty float64   `json:"reservedQty"`
}

// AdjustStock writes one stock position. LastModified is bumped so the next
// reconciliation cycle pushes the change outward.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot := &models.InventorySnapshot{
		ItemKey:      req.ItemKey,
		SKU:          req.SKU,
		WarehouseID:  req.WarehouseID,
		ActualQty:    req.ActualQty,
		ReservedQty:  req.ReservedQty,
		LastModified: time.Now(),
	}
	if err := h.inventory.UpsertSnapshot(c.Request.Context(), snapshot); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// GetItemStock returns the stock positions of one item across warehouses
func (h *InventoryHandler) GetItemStock(c *gin.Context) {
	itemKey, err := uuid.Parse(c.Param("itemKey"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item key"})
		return
	}

	snapshots, err := h.inventory.GetSnapshotsByItem(c.Request.Context(), itemKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshots, "total": len(snapshots)})
}
