package repository

import (
	"context"
	"errors"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateEvent is returned when a webhook with the same idempotency key
// was already stored.
var ErrDuplicateEvent = errors.New("webhook event already recorded")

// WebhookRepository handles database operations for webhook events
type WebhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Create stores an inbound event. A redelivery with a known idempotency key
// returns ErrDuplicateEvent.
func (r *WebhookRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	return err
}

// MarkProcessed flags an event as handled
func (r *WebhookRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": now,
		}).Error
}

// MarkFailed records a processing failure on an event
func (r *WebhookRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("processing_error", message).Error
}

// ListUnprocessed retrieves events that have not been handled yet
func (r *WebhookRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	query := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}
