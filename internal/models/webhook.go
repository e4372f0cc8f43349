package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is an inbound webhook payload after signature verification.
// The idempotency key deduplicates provider redeliveries.
type WebhookEvent struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	IntegrationID uuid.UUID    `gorm:"type:uuid;not null;index:idx_webhook_events_integration" json:"integrationId"`
	PlatformType  PlatformType `gorm:"type:varchar(50);not null" json:"platformType"`

	EventID   string `gorm:"type:varchar(255);not null" json:"eventId"`
	EventType string `gorm:"type:varchar(100);not null;index:idx_webhook_events_type" json:"eventType"`

	Payload JSONB `gorm:"type:jsonb;not null" json:"payload"`

	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_events_idempotency" json:"idempotencyKey"`

	Processed       bool       `gorm:"default:false;index:idx_webhook_events_processed" json:"processed"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for WebhookEvent
func (WebhookEvent) TableName() string {
	return "integration_webhook_events"
}
