package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"erp-sync-service/internal/models"
	"erp-sync-service/internal/repository"
	"erp-sync-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SyncHandler handles manual sync triggers and run inspection
type SyncHandler struct {
	sync *services.SyncService
	runs *repository.SyncRunRepository
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync *services.SyncService, runs *repository.SyncRunRepository) *SyncHandler {
	return &SyncHandler{sync: sync, runs: runs}
}

// TriggerRequest selects which job to run manually
type TriggerRequest struct {
	Job string `json:"job" binding:"required"`
}

// Trigger runs one sync job immediately, bypassing the schedule gate
func (h *SyncHandler) Trigger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var run *models.SyncRun
	switch req.Job {
	case models.JobSyncNewOrders:
		run, err = h.sync.SyncNewOrders(c.Request.Context(), id, models.TriggerManual)
	case models.JobUpdateInventory:
		run, err = h.sync.UpdateInventory(c.Request.Context(), id, models.TriggerManual)
	case models.JobUpdateOrderStatus:
		run, err = h.sync.UpdateOrderStatus(c.Request.Context(), id, models.TriggerManual)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job: " + req.Job})
		return
	}

	if err != nil {
		if errors.Is(err, services.ErrSyncDisabled) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "data": run})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "data": run})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

// ListRuns returns recent runs for an integration
func (h *SyncHandler) ListRuns(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.runs.ListByIntegration(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs, "total": len(runs)})
}

// GetRun returns one run with its logs
func (h *SyncHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}
