package services

import (
	"context"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLinkStore is a mock implementation of LinkStore
type MockLinkStore struct {
	mock.Mock
}

var _ LinkStore = (*MockLinkStore)(nil)

func (m *MockLinkStore) FindByExternal(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType, externalCode, variantID string) (*models.SyncLinkRecord, error) {
	args := m.Called(ctx, integrationID, entityType, externalCode, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncLinkRecord), args.Error(1)
}

func (m *MockLinkStore) FindBySKU(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType, sku string) (*models.SyncLinkRecord, error) {
	args := m.Called(ctx, integrationID, entityType, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncLinkRecord), args.Error(1)
}

func (m *MockLinkStore) ListByEntityType(ctx context.Context, integrationID uuid.UUID, entityType models.EntityType) ([]models.SyncLinkRecord, error) {
	args := m.Called(ctx, integrationID, entityType)
	return args.Get(0).([]models.SyncLinkRecord), args.Error(1)
}

func (m *MockLinkStore) Create(ctx context.Context, link *models.SyncLinkRecord) error {
	args := m.Called(ctx, link)
	if args.Error(0) == nil {
		link.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockLinkStore) MarkSynced(ctx context.Context, linkID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, linkID, at)
	return args.Error(0)
}

// MockOrderStore is a mock implementation of OrderStore
type MockOrderStore struct {
	mock.Mock
}

var _ OrderStore = (*MockOrderStore)(nil)

func (m *MockOrderStore) Create(ctx context.Context, order *models.OrderRecord) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderStore) GetByExternalCode(ctx context.Context, integrationID uuid.UUID, externalCode string) (*models.OrderRecord, error) {
	args := m.Called(ctx, integrationID, externalCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderRecord), args.Error(1)
}

func (m *MockOrderStore) ListOpenOrders(ctx context.Context, integrationID uuid.UUID) ([]models.OrderRecord, error) {
	args := m.Called(ctx, integrationID)
	return args.Get(0).([]models.OrderRecord), args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus, at time.Time) error {
	args := m.Called(ctx, orderID, status, at)
	return args.Error(0)
}

func (m *MockOrderStore) CancelLine(ctx context.Context, lineID uuid.UUID) error {
	args := m.Called(ctx, lineID)
	return args.Error(0)
}

func (m *MockOrderStore) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity float64) error {
	args := m.Called(ctx, lineID, quantity)
	return args.Error(0)
}

func (m *MockOrderStore) FindCustomersByName(ctx context.Context, name string) ([]models.Customer, error) {
	args := m.Called(ctx, name)
	return args.Get(0).([]models.Customer), args.Error(1)
}

func (m *MockOrderStore) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	args := m.Called(ctx, customer)
	if args.Error(0) == nil {
		customer.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockOrderStore) FindItemBySKU(ctx context.Context, sku string) (*models.Item, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *MockOrderStore) CreateItem(ctx context.Context, item *models.Item) error {
	args := m.Called(ctx, item)
	if args.Error(0) == nil {
		item.ID = uuid.New()
	}
	return args.Error(0)
}

// MockInventoryStore is a mock implementation of InventoryStore
type MockInventoryStore struct {
	mock.Mock
}

var _ InventoryStore = (*MockInventoryStore)(nil)

func (m *MockInventoryStore) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Warehouse), args.Error(1)
}

func (m *MockInventoryStore) GetSnapshots(ctx context.Context, itemKeys []uuid.UUID, warehouseIDs []uuid.UUID) ([]models.InventorySnapshot, error) {
	args := m.Called(ctx, itemKeys, warehouseIDs)
	return args.Get(0).([]models.InventorySnapshot), args.Error(1)
}

// MockScheduleStore is a mock implementation of ScheduleStore
type MockScheduleStore struct {
	mock.Mock
}

var _ ScheduleStore = (*MockScheduleStore)(nil)

func (m *MockScheduleStore) GetOrCreate(ctx context.Context, integrationID uuid.UUID, jobKey string) (*models.SyncSchedule, error) {
	args := m.Called(ctx, integrationID, jobKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncSchedule), args.Error(1)
}

func (m *MockScheduleStore) Advance(ctx context.Context, scheduleID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, scheduleID, at)
	return args.Error(0)
}

// MockIntegrationStore is a mock implementation of IntegrationStore
type MockIntegrationStore struct {
	mock.Mock
}

var _ IntegrationStore = (*MockIntegrationStore)(nil)

func (m *MockIntegrationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockIntegrationStore) List(ctx context.Context) ([]models.IntegrationConnection, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.IntegrationConnection), args.Error(1)
}

func (m *MockIntegrationStore) ListEnabled(ctx context.Context) ([]models.IntegrationConnection, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.IntegrationConnection), args.Error(1)
}

func (m *MockIntegrationStore) Create(ctx context.Context, integration *models.IntegrationConnection) error {
	args := m.Called(ctx, integration)
	return args.Error(0)
}

func (m *MockIntegrationStore) Update(ctx context.Context, integration *models.IntegrationConnection) error {
	args := m.Called(ctx, integration)
	return args.Error(0)
}

func (m *MockIntegrationStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIntegrationStore) SetSyncEnabled(ctx context.Context, id uuid.UUID, enabled bool, lastError string) error {
	args := m.Called(ctx, id, enabled, lastError)
	return args.Error(0)
}

func (m *MockIntegrationStore) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockIntegrationStore) UpdateCredentials(ctx context.Context, id uuid.UUID, credentials models.JSONB) error {
	args := m.Called(ctx, id, credentials)
	return args.Error(0)
}

// MockRunStore is a mock implementation of RunStore
type MockRunStore struct {
	mock.Mock
}

var _ RunStore = (*MockRunStore)(nil)

func (m *MockRunStore) Create(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	if args.Error(0) == nil {
		run.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockRunStore) Update(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunStore) Complete(ctx context.Context, run *models.SyncRun, status models.SyncRunStatus, errorMessage string) error {
	args := m.Called(ctx, run, status, errorMessage)
	run.Status = status
	run.ErrorMessage = errorMessage
	return args.Error(0)
}

func (m *MockRunStore) AppendLog(ctx context.Context, runID uuid.UUID, level models.LogLevel, message string, data models.JSONB) error {
	args := m.Called(ctx, runID, level, message, data)
	return args.Error(0)
}

// MockWebhookStore is a mock implementation of WebhookStore
type MockWebhookStore struct {
	mock.Mock
}

var _ WebhookStore = (*MockWebhookStore)(nil)

func (m *MockWebhookStore) Create(ctx context.Context, event *models.WebhookEvent) error {
	args := m.Called(ctx, event)
	if args.Error(0) == nil {
		event.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockWebhookStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWebhookStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

// MockPlatformClient is a mock implementation of clients.PlatformClient
type MockPlatformClient struct {
	mock.Mock
}

var _ clients.PlatformClient = (*MockPlatformClient)(nil)

func (m *MockPlatformClient) Platform() models.PlatformType {
	args := m.Called()
	return args.Get(0).(models.PlatformType)
}

func (m *MockPlatformClient) Initialize(ctx context.Context, endpoint string, credentials map[string]interface{}) error {
	args := m.Called(ctx, endpoint, credentials)
	return args.Error(0)
}

func (m *MockPlatformClient) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPlatformClient) RefreshToken(ctx context.Context) (*clients.TokenResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.TokenResult), args.Error(1)
}

func (m *MockPlatformClient) FetchOrders(ctx context.Context, opts *clients.OrderListOptions) (*clients.OrdersPage, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.OrdersPage), args.Error(1)
}

func (m *MockPlatformClient) FetchOrder(ctx context.Context, externalCode string) (*clients.ExternalOrder, error) {
	args := m.Called(ctx, externalCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ExternalOrder), args.Error(1)
}

func (m *MockPlatformClient) FetchProduct(ctx context.Context, externalCode string) (*clients.ExternalProduct, error) {
	args := m.Called(ctx, externalCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ExternalProduct), args.Error(1)
}

func (m *MockPlatformClient) PushInventory(ctx context.Context, updates []clients.InventoryUpdate) (map[string]clients.PushResult, error) {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]clients.PushResult), args.Error(1)
}

func (m *MockPlatformClient) VerifyWebhook(payload []byte, signature string, secret string) error {
	args := m.Called(payload, signature, secret)
	return args.Error(0)
}

func (m *MockPlatformClient) ParseWebhook(payload []byte) (*clients.WebhookEvent, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.WebhookEvent), args.Error(1)
}
