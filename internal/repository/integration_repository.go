package repository

import (
	"context"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IntegrationRepository handles database operations for integration connections
type IntegrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Create creates a new integration connection
func (r *IntegrationRepository) Create(ctx context.Context, integration *models.IntegrationConnection) error {
	return r.db.WithContext(ctx).Create(integration).Error
}

// GetByID retrieves an integration by ID
func (r *IntegrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IntegrationConnection, error) {
	var integration models.IntegrationConnection
	err := r.db.WithContext(ctx).First(&integration, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

// List retrieves all integrations, newest first
func (r *IntegrationRepository) List(ctx context.Context) ([]models.IntegrationConnection, error) {
	var integrations []models.IntegrationConnection
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&integrations).Error
	return integrations, err
}

// ListEnabled retrieves integrations with syncing enabled
func (r *IntegrationRepository) ListEnabled(ctx context.Context) ([]models.IntegrationConnection, error) {
	var integrations []models.IntegrationConnection
	err := r.db.WithContext(ctx).
		Where("sync_enabled = ?", true).
		Find(&integrations).Error
	return integrations, err
}

// Update updates an existing integration
func (r *IntegrationRepository) Update(ctx context.Context, integration *models.IntegrationConnection) error {
	return r.db.WithContext(ctx).Save(integration).Error
}

// Delete removes an integration
func (r *IntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.IntegrationConnection{}, "id = ?", id).Error
}

// SetSyncEnabled flips the circuit breaker flag. The write is a plain UPDATE
// of the target state, so concurrent disables converge on the same row
// regardless of ordering.
func (r *IntegrationRepository) SetSyncEnabled(ctx context.Context, id uuid.UUID, enabled bool, lastError string) error {
	updates := map[string]interface{}{
		"sync_enabled": enabled,
	}
	if enabled {
		updates["last_error"] = ""
		updates["error_count"] = 0
	} else {
		updates["last_error"] = lastError
	}
	return r.db.WithContext(ctx).
		Model(&models.IntegrationConnection{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RecordError stores the last error and bumps the error counter
func (r *IntegrationRepository) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.IntegrationConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error":  message,
			"error_count": gorm.Expr("error_count + 1"),
		}).Error
}

// UpdateCredentials replaces the stored credential material after a token
// refresh so the next sync cycle reuses the fresh token.
func (r *IntegrationRepository) UpdateCredentials(ctx context.Context, id uuid.UUID, credentials models.JSONB) error {
	return r.db.WithContext(ctx).
		Model(&models.IntegrationConnection{}).
		Where("id = ?", id).
		Update("credentials", credentials).Error
}
