package repository

import (
	"context"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncRunRepository handles database operations for sync runs and their logs
type SyncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create starts a new run record
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID retrieves a run with its logs
func (r *SyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	err := r.db.WithContext(ctx).
		Preload("Logs").
		First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByIntegration retrieves recent runs for an integration
func (r *SyncRunRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	query := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

// Update persists run progress counters and status
func (r *SyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// Complete finishes a run with a final status
func (r *SyncRunRepository) Complete(ctx context.Context, run *models.SyncRun, status models.SyncRunStatus, errorMessage string) error {
	now := time.Now()
	run.Status = status
	run.ErrorMessage = errorMessage
	run.CompletedAt = &now
	return r.db.WithContext(ctx).Save(run).Error
}

// AppendLog attaches one log row to a run
func (r *SyncRunRepository) AppendLog(ctx context.Context, runID uuid.UUID, level models.LogLevel, message string, data models.JSONB) error {
	log := models.SyncRunLog{
		RunID:   runID,
		Level:   level,
		Message: message,
		Data:    data,
	}
	return r.db.WithContext(ctx).Create(&log).Error
}
