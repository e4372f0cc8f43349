package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType represents the kind of entity a sync link maps
type EntityType string

const (
	EntityItem     EntityType = "ITEM"
	EntityCustomer EntityType = "CUSTOMER"
	EntityOrder    EntityType = "ORDER"
)

// SyncLinkRecord maps one internal record to one external identity within an
// integration. The composite unique index on (integration_id, entity_type,
// external_code, variant_id) is what makes concurrent imports idempotent: a
// second insert for the same external identity fails at the constraint and
// the caller falls back to reading the winner's row. VariantID is stored as
// an empty string rather than NULL so it participates in the constraint.
type SyncLinkRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	IntegrationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sync_links_external,priority:1;uniqueIndex:idx_sync_links_sku,priority:1" json:"integrationId"`
	EntityType    EntityType `gorm:"type:varchar(50);not null;uniqueIndex:idx_sync_links_external,priority:2;uniqueIndex:idx_sync_links_sku,priority:2" json:"entityType"`
	ExternalCode  string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_sync_links_external,priority:3" json:"externalCode"`
	VariantID     string     `gorm:"type:varchar(255);not null;default:'';uniqueIndex:idx_sync_links_external,priority:4" json:"variantId,omitempty"`

	// SKU is unique per (integration, entity type) when present; NULL rows
	// are exempt from the constraint.
	SKU *string `gorm:"type:varchar(255);uniqueIndex:idx_sync_links_sku,priority:3" json:"sku,omitempty"`

	// InternalKey is the primary key of the internal record this link points at.
	InternalKey uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_links_internal" json:"internalKey"`

	// LastSyncedAt is the outbound watermark: a push to the external system
	// is only attempted when local state changed after this timestamp. It is
	// the only field mutated after creation.
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for SyncLinkRecord
func (SyncLinkRecord) TableName() string {
	return "integration_sync_links"
}
