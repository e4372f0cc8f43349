package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlatformType represents the supported commerce platforms
type PlatformType string

const (
	PlatformAmazon      PlatformType = "AMAZON"
	PlatformShopify     PlatformType = "SHOPIFY"
	PlatformUnicommerce PlatformType = "UNICOMMERCE"
)

// JSONB custom type for PostgreSQL JSONB
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(j))
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = JSONB(m)
	return nil
}

// MaxRetryCap is the hard upper bound on per-call retry attempts, regardless
// of what an operator configures on the integration.
const MaxRetryCap = 5

// IntegrationConnection represents one configured connection to an external
// commerce platform. Credentials are either stored inline (Credentials JSONB)
// or referenced from GCP Secret Manager (SecretReference).
type IntegrationConnection struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PlatformType PlatformType `gorm:"type:varchar(50);not null;index:idx_integrations_platform" json:"platformType"`
	DisplayName  string       `gorm:"type:varchar(255);not null" json:"displayName"`

	// Endpoint override; empty means the client's default for the platform.
	Endpoint string `gorm:"type:varchar(500)" json:"endpoint,omitempty"`

	// Auth material
	Credentials     JSONB      `gorm:"type:jsonb;default:'{}'" json:"-"`
	SecretReference string     `gorm:"type:varchar(500)" json:"-"`
	TokenExpiresAt  *time.Time `json:"tokenExpiresAt,omitempty"`

	// SyncEnabled is the circuit breaker flag: flipped off when a call
	// exhausts its retries, re-enabled by an operator.
	SyncEnabled bool `gorm:"default:true;index:idx_integrations_enabled" json:"syncEnabled"`

	// Retry budget for outbound calls, capped at MaxRetryCap.
	MaxRetries int `gorm:"default:3" json:"maxRetries"`

	// Scheduling intervals per job, in minutes.
	OrderSyncIntervalMinutes     int `gorm:"default:15" json:"orderSyncIntervalMinutes"`
	InventorySyncIntervalMinutes int `gorm:"default:30" json:"inventorySyncIntervalMinutes"`
	StatusSyncIntervalMinutes    int `gorm:"default:60" json:"statusSyncIntervalMinutes"`

	// WarehouseID is the warehouse whose stock this integration pushes. A
	// group warehouse aggregates stock across its descendants.
	WarehouseID *uuid.UUID `gorm:"type:uuid" json:"warehouseId,omitempty"`

	// Webhook shared secret for HMAC verification.
	WebhookSecret string `gorm:"type:varchar(500)" json:"-"`

	LastError  string `gorm:"type:text" json:"lastError,omitempty"`
	ErrorCount int    `gorm:"default:0" json:"errorCount"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for IntegrationConnection
func (IntegrationConnection) TableName() string {
	return "integration_connections"
}

// RetryBudget returns the effective retry attempt count for this integration.
func (c *IntegrationConnection) RetryBudget() int {
	if c.MaxRetries <= 0 {
		return 1
	}
	if c.MaxRetries > MaxRetryCap {
		return MaxRetryCap
	}
	return c.MaxRetries
}

// Job keys for scheduled entry points.
const (
	JobSyncNewOrders     = "orders:sync"
	JobUpdateInventory   = "inventory:push"
	JobUpdateOrderStatus = "orders:status"
)

// SyncSchedule tracks the last run of a periodic job per integration. The
// gate reads and advances LastRunAt; it is the only writer.
type SyncSchedule struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	IntegrationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sync_schedules_job,priority:1" json:"integrationId"`
	JobKey        string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_sync_schedules_job,priority:2" json:"jobKey"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for SyncSchedule
func (SyncSchedule) TableName() string {
	return "integration_sync_schedules"
}
