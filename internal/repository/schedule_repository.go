package repository

import (
	"context"
	"errors"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleRepository handles database operations for sync schedules
type ScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetOrCreate retrieves the schedule row for a job, creating it with a nil
// LastRunAt when it does not exist yet. A lost race on creation falls back to
// reading the winner's row.
func (r *ScheduleRepository) GetOrCreate(ctx context.Context, integrationID uuid.UUID, jobKey string) (*models.SyncSchedule, error) {
	var schedule models.SyncSchedule
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND job_key = ?", integrationID, jobKey).
		First(&schedule).Error
	if err == nil {
		return &schedule, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	schedule = models.SyncSchedule{IntegrationID: integrationID, JobKey: jobKey}
	if cerr := r.db.WithContext(ctx).Create(&schedule).Error; cerr != nil {
		if errors.Is(cerr, gorm.ErrDuplicatedKey) {
			err = r.db.WithContext(ctx).
				Where("integration_id = ? AND job_key = ?", integrationID, jobKey).
				First(&schedule).Error
			if err != nil {
				return nil, err
			}
			return &schedule, nil
		}
		return nil, cerr
	}
	return &schedule, nil
}

// Advance moves the last-run watermark forward
func (r *ScheduleRepository) Advance(ctx context.Context, scheduleID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncSchedule{}).
		Where("id = ?", scheduleID).
		Update("last_run_at", at).Error
}
