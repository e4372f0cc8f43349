package services

import (
	"context"
	"testing"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestSyncService(integrations *MockIntegrationStore, orders *MockOrderStore, runs *MockRunStore, links *MockLinkStore, inventory *MockInventoryStore, client *MockPlatformClient) *SyncService {
	mapper := NewUpsertMapper(links)
	orderSync := NewOrderSyncService(orders, mapper, zap.NewNop())
	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())

	svc := NewSyncService(integrations, orders, runs, orderSync, reconciler, nil, zap.NewNop())
	svc.newClient = func(models.PlatformType) (clients.PlatformClient, error) { return client, nil }
	svc.policy = clients.CallPolicy{
		MaxAttempts: 3,
		Interval:    time.Second,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
	return svc
}

func TestSyncNewOrdersRefusesDisabledIntegration(t *testing.T) {
	integrations := new(MockIntegrationStore)
	integration := testIntegration()
	integration.SyncEnabled = false

	integrations.On("GetByID", mock.Anything, integration.ID).Return(integration, nil)

	svc := newTestSyncService(integrations, new(MockOrderStore), new(MockRunStore), new(MockLinkStore), new(MockInventoryStore), new(MockPlatformClient))
	_, err := svc.SyncNewOrders(context.Background(), integration.ID, models.TriggerManual)

	assert.ErrorIs(t, err, ErrSyncDisabled)
}

func TestSyncNewOrdersDisablesIntegrationOnExhaustedRetries(t *testing.T) {
	integrations := new(MockIntegrationStore)
	runs := new(MockRunStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	integrations.On("GetByID", mock.Anything, integration.ID).Return(integration, nil)
	client.On("Initialize", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	// Every fetch attempt is throttled; the budget is exhausted and the
	// breaker trips.
	client.On("FetchOrders", mock.Anything, mock.Anything).Return(nil, clients.NewTransientError("HTTP_429", "throttled"))
	integrations.On("SetSyncEnabled", mock.Anything, integration.ID, false, mock.Anything).Return(nil)
	integrations.On("RecordError", mock.Anything, integration.ID, mock.Anything).Return(nil)
	runs.On("AppendLog", mock.Anything, mock.Anything, models.LogLevelError, mock.Anything, mock.Anything).Return(nil)
	runs.On("Complete", mock.Anything, mock.Anything, models.SyncRunFailed, mock.Anything).Return(nil)

	svc := newTestSyncService(integrations, new(MockOrderStore), runs, new(MockLinkStore), new(MockInventoryStore), client)
	_, err := svc.SyncNewOrders(context.Background(), integration.ID, models.TriggerScheduled)

	assert.ErrorIs(t, err, ErrSyncDisabled)
	client.AssertNumberOfCalls(t, "FetchOrders", integration.RetryBudget())
	integrations.AssertCalled(t, "SetSyncEnabled", mock.Anything, integration.ID, false, mock.Anything)
}

func TestSyncNewOrdersFailsFastOnAuthError(t *testing.T) {
	integrations := new(MockIntegrationStore)
	runs := new(MockRunStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	integrations.On("GetByID", mock.Anything, integration.ID).Return(integration, nil)
	client.On("Initialize", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	client.On("FetchOrders", mock.Anything, mock.Anything).Return(nil, clients.NewAuthenticationError("token revoked"))
	runs.On("Complete", mock.Anything, mock.Anything, models.SyncRunFailed, mock.Anything).Return(nil)

	svc := newTestSyncService(integrations, new(MockOrderStore), runs, new(MockLinkStore), new(MockInventoryStore), client)
	_, err := svc.SyncNewOrders(context.Background(), integration.ID, models.TriggerScheduled)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSyncDisabled)
	// Auth errors never retry and never trip the breaker.
	client.AssertNumberOfCalls(t, "FetchOrders", 1)
	integrations.AssertNotCalled(t, "SetSyncEnabled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncNewOrdersIsolatesBadOrders(t *testing.T) {
	integrations := new(MockIntegrationStore)
	orders := new(MockOrderStore)
	runs := new(MockRunStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	good := *externalOrder()
	bad := *externalOrder()
	bad.Code = "ORD-1002"
	bad.LineItems = nil // incomplete: skipped, not fatal

	integrations.On("GetByID", mock.Anything, integration.ID).Return(integration, nil)
	client.On("Initialize", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)
	runs.On("AppendLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("Complete", mock.Anything, mock.Anything, models.SyncRunCompleted, "").Return(nil)

	client.On("FetchOrders", mock.Anything, mock.Anything).Return(&clients.OrdersPage{
		Orders: []clients.ExternalOrder{good, bad},
	}, nil).Once()

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1002").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(
		&models.SyncLinkRecord{ID: uuid.New(), InternalKey: uuid.New()}, nil)
	orders.On("FindCustomersByName", mock.Anything, "Jordan Blake").Return([]models.Customer{}, nil)
	orders.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newTestSyncService(integrations, orders, runs, links, new(MockInventoryStore), client)
	run, err := svc.SyncNewOrders(context.Background(), integration.ID, models.TriggerScheduled)

	assert.NoError(t, err)
	assert.Equal(t, 2, run.TotalItems)
	assert.Equal(t, 1, run.SuccessfulItems)
	assert.Equal(t, 1, run.SkippedItems)
	assert.Equal(t, 0, run.FailedItems)
}

func TestUpdateInventoryCompletesWithNoDeltas(t *testing.T) {
	integrations := new(MockIntegrationStore)
	runs := new(MockRunStore)
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	integrations.On("GetByID", mock.Anything, integration.ID).Return(integration, nil)
	client.On("Initialize", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)
	runs.On("Complete", mock.Anything, mock.Anything, models.SyncRunCompleted, "").Return(nil)
	inventory.On("ListWarehouses", mock.Anything).Return([]models.Warehouse{}, nil)
	links.On("ListByEntityType", mock.Anything, integration.ID, models.EntityItem).Return([]models.SyncLinkRecord{}, nil)

	svc := newTestSyncService(integrations, new(MockOrderStore), runs, links, inventory, client)
	run, err := svc.UpdateInventory(context.Background(), integration.ID, models.TriggerScheduled)

	assert.NoError(t, err)
	assert.Equal(t, models.SyncRunCompleted, run.Status)
	client.AssertNotCalled(t, "PushInventory", mock.Anything, mock.Anything)
}
