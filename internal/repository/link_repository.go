package repository

import (
	"context"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LinkRepository handles database operations for sync link records
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindByExternal looks up a link by external identity. Returns
// gorm.ErrRecordNotFound when no link exists.
func (r *LinkRepository) FindByExternal(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType, externalCode, variantID string) (*models.SyncLinkRecord, error) {
	var link models.SyncLinkRecord
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND entity_type = ? AND external_code = ? AND variant_id = ?",
			integrationID, entityType, externalCode, variantID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// FindBySKU looks up a link by SKU within an integration and entity type.
func (r *LinkRepository) FindBySKU(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType, sku string) (*models.SyncLinkRecord, error) {
	var link models.SyncLinkRecord
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND entity_type = ? AND sku = ?", integrationID, entityType, sku).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListByEntityType returns all links of one entity type for an integration.
func (r *LinkRepository) ListByEntityType(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType) ([]models.SyncLinkRecord, error) {
	var links []models.SyncLinkRecord
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND entity_type = ?", integrationID, entityType).
		Find(&links).Error
	return links, err
}

// Create inserts a link. A lost insert race surfaces gorm.ErrDuplicatedKey;
// the mapper decides which unique index fired and re-reads the winner.
func (r *LinkRepository) Create(ctx context.Context, link *models.SyncLinkRecord) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// MarkSynced advances the outbound watermark for a link
func (r *LinkRepository) MarkSynced(ctx context.Context, linkID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncLinkRecord{}).
		Where("id = ?", linkID).
		Update("last_synced_at", at).Error
}
