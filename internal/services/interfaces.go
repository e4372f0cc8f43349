package services

import (
	"context"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
)

// The stores below are the slices of the repository layer each service
// consumes. Tests substitute mocks; production wiring passes the gorm-backed
// repositories, which satisfy them structurally.

// IntegrationStore persists integration connections.
type IntegrationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.IntegrationConnection, error)
	List(ctx context.Context) ([]models.IntegrationConnection, error)
	ListEnabled(ctx context.Context) ([]models.IntegrationConnection, error)
	Create(ctx context.Context, integration *models.IntegrationConnection) error
	Update(ctx context.Context, integration *models.IntegrationConnection) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetSyncEnabled(ctx context.Context, id uuid.UUID, enabled bool, lastError string) error
	RecordError(ctx context.Context, id uuid.UUID, message string) error
	UpdateCredentials(ctx context.Context, id uuid.UUID, credentials models.JSONB) error
}

// LinkStore persists sync link records.
type LinkStore interface {
	FindByExternal(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType, externalCode, variantID string) (*models.SyncLinkRecord, error)
	FindBySKU(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType, sku string) (*models.SyncLinkRecord, error)
	ListByEntityType(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType) ([]models.SyncLinkRecord, error)
	Create(ctx context.Context, link *models.SyncLinkRecord) error
	MarkSynced(ctx context.Context, linkID uuid.UUID, at time.Time) error
}

// OrderStore persists orders, customers and items.
type OrderStore interface {
	Create(ctx context.Context, order *models.OrderRecord) error
	GetByExternalCode(ctx context.Context, integrationID uuid.UUID, externalCode string) (*models.OrderRecord, error)
	ListOpenOrders(ctx context.Context, integrationID uuid.UUID) ([]models.OrderRecord, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus, at time.Time) error
	CancelLine(ctx context.Context, lineID uuid.UUID) error
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity float64) error
	FindCustomersByName(ctx context.Context, name string) ([]models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	FindItemBySKU(ctx context.Context, sku string) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
}

// InventoryStore reads warehouses and stock snapshots.
type InventoryStore interface {
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	GetSnapshots(ctx context.Context, itemKeys []uuid.UUID, warehouseIDs []uuid.UUID) ([]models.InventorySnapshot, error)
}

// ScheduleStore persists per-job scheduling state.
type ScheduleStore interface {
	GetOrCreate(ctx context.Context, integrationID uuid.UUID, jobKey string) (*models.SyncSchedule, error)
	Advance(ctx context.Context, scheduleID uuid.UUID, at time.Time) error
}

// RunStore persists sync run bookkeeping.
type RunStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
	Complete(ctx context.Context, run *models.SyncRun, status models.SyncRunStatus, errorMessage string) error
	AppendLog(ctx context.Context, runID uuid.UUID, level models.LogLevel, message string, data models.JSONB) error
}

// WebhookStore persists inbound webhook events.
type WebhookStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}
