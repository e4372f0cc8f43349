package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func testIntegration() *models.IntegrationConnection {
	return &models.IntegrationConnection{
		ID:           uuid.New(),
		PlatformType: models.PlatformShopify,
		SyncEnabled:  true,
		MaxRetries:   3,
	}
}

func externalOrder() *clients.ExternalOrder {
	return &clients.ExternalOrder{
		Code:        "ORD-1001",
		Status:      "pending",
		Currency:    "USD",
		TotalAmount: 59.98,
		CreatedAt:   time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC),
		LineItems: []clients.ExternalLineItem{
			{LineID: "L1", SKU: "SKU-A", Quantity: 2, UnitPrice: 29.99},
		},
		Customer: &clients.ExternalCustomer{ExternalID: "C1", Name: "Jordan Blake", Email: "jordan@example.com"},
		Address:  &clients.ExternalAddress{Address1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
	}
}

func newTestOrderSync(orders *MockOrderStore, links *MockLinkStore) *OrderSyncService {
	return NewOrderSyncService(orders, NewUpsertMapper(links), zap.NewNop())
}

func TestImportOrderCreatesOrderEndToEnd(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()
	ext := externalOrder()
	itemKey := uuid.New()

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(
		&models.SyncLinkRecord{ID: uuid.New(), InternalKey: itemKey}, nil)
	orders.On("FindCustomersByName", mock.Anything, "Jordan Blake").Return([]models.Customer{}, nil)
	orders.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil)
	orders.On("Create", mock.Anything, mock.MatchedBy(func(o *models.OrderRecord) bool {
		return o.ExternalCode == "ORD-1001" &&
			o.Status == models.OrderStatusPending &&
			len(o.Lines) == 1 &&
			o.Lines[0].ItemKey == itemKey
	})).Return(nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportCreated, outcome)
	orders.AssertExpectations(t)
}

func TestImportOrderSkipsWhenConcurrentWorkerWon(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()
	ext := externalOrder()

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(
		&models.SyncLinkRecord{ID: uuid.New(), InternalKey: uuid.New()}, nil)
	orders.On("FindCustomersByName", mock.Anything, "Jordan Blake").Return([]models.Customer{}, nil)
	orders.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(gorm.ErrDuplicatedKey)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportSkipped, outcome)
}

func TestImportOrderSkipsIncompleteSourceData(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	ext := externalOrder()
	ext.LineItems[0].SKU = ""

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	var incomplete *IncompleteSourceDataError
	assert.True(t, errors.As(err, &incomplete))
	assert.Equal(t, ImportSkipped, outcome)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImportOrderAbortsOnUnresolvableItem(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()
	ext := externalOrder()

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindBySKU", mock.Anything, integration.ID, models.EntityItem, "SKU-A").Return(nil, gorm.ErrRecordNotFound)
	orders.On("FindItemBySKU", mock.Anything, "SKU-A").Return(nil, gorm.ErrRecordNotFound)
	client.On("FetchProduct", mock.Anything, "SKU-A").Return(nil, clients.NewRequestError("HTTP_404", "no such product"))

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	var unresolved *UnresolvedItemError
	assert.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "SKU-A", unresolved.SKU)
	assert.Equal(t, ImportSkipped, outcome)
	// Partial orders are never created with missing lines.
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImportOrderRunsProductImportSubFlow(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()
	ext := externalOrder()

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindBySKU", mock.Anything, integration.ID, models.EntityItem, "SKU-A").Return(nil, gorm.ErrRecordNotFound)
	orders.On("FindItemBySKU", mock.Anything, "SKU-A").Return(nil, gorm.ErrRecordNotFound)
	client.On("FetchProduct", mock.Anything, "SKU-A").Return(&clients.ExternalProduct{Code: "P1", SKU: "SKU-A", Title: "Widget"}, nil)
	orders.On("CreateItem", mock.Anything, mock.MatchedBy(func(i *models.Item) bool {
		return i.SKU == "SKU-A" && i.Name == "Widget"
	})).Return(nil)
	links.On("Create", mock.Anything, mock.Anything).Return(nil)
	orders.On("FindCustomersByName", mock.Anything, "Jordan Blake").Return([]models.Customer{}, nil)
	orders.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportCreated, outcome)
	client.AssertExpectations(t)
}

func TestImportOrderReusesCustomerOnExactAddressMatch(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()
	ext := externalOrder()

	existing := models.Customer{
		ID: uuid.New(), Name: "Jordan Blake",
		Address1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
	}

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(
		&models.SyncLinkRecord{ID: uuid.New(), InternalKey: uuid.New()}, nil)
	orders.On("FindCustomersByName", mock.Anything, "Jordan Blake").Return([]models.Customer{existing}, nil)
	orders.On("Create", mock.Anything, mock.MatchedBy(func(o *models.OrderRecord) bool {
		return o.CustomerID == existing.ID
	})).Return(nil)

	svc := newTestOrderSync(orders, links)
	_, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	orders.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestImportOrderCreatesNewCustomerOnAddressMismatch(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()
	ext := externalOrder()

	// Same name, trivially different street formatting: still a new customer.
	existing := models.Customer{
		ID: uuid.New(), Name: "Jordan Blake",
		Address1: "1 Main Street", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
	}

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(nil, gorm.ErrRecordNotFound)
	links.On("FindByExternal", mock.Anything, integration.ID, models.EntityItem, "SKU-A", "").Return(
		&models.SyncLinkRecord{ID: uuid.New(), InternalKey: uuid.New()}, nil)
	orders.On("FindCustomersByName", mock.Anything, "Jordan Blake").Return([]models.Customer{existing}, nil)
	orders.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newTestOrderSync(orders, links)
	_, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	orders.AssertCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestReconcilePartialCancellation(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	lineKeep := models.OrderLine{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}
	lineDrop := models.OrderLine{ID: uuid.New(), ExternalLineID: "L2", SKU: "SKU-B", Quantity: 1}
	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusPending,
		Lines:         []models.OrderLine{lineKeep, lineDrop},
	}

	ext := externalOrder()
	ext.LineItems = []clients.ExternalLineItem{
		{LineID: "L1", SKU: "SKU-A", Quantity: 2},
		{LineID: "L2", SKU: "SKU-B", Quantity: 1, Cancelled: true},
	}

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)
	orders.On("CancelLine", mock.Anything, lineDrop.ID).Return(nil)
	orders.On("UpdateStatus", mock.Anything, order.ID, models.OrderStatusPartiallyCancelled, mock.Anything).Return(nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportUpdated, outcome)
	orders.AssertNotCalled(t, "CancelLine", mock.Anything, lineKeep.ID)
}

func TestReconcilePartialCancellationOutranksPaidStatus(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	lineKeep := models.OrderLine{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}
	lineDrop := models.OrderLine{ID: uuid.New(), ExternalLineID: "L2", SKU: "SKU-B", Quantity: 1}
	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusPending,
		Lines:         []models.OrderLine{lineKeep, lineDrop},
	}

	// Externally the order was paid and one line cancelled in the same poll.
	ext := externalOrder()
	ext.Status = "paid"
	ext.LineItems = []clients.ExternalLineItem{
		{LineID: "L1", SKU: "SKU-A", Quantity: 2},
		{LineID: "L2", SKU: "SKU-B", Quantity: 1, Cancelled: true},
	}

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)
	orders.On("CancelLine", mock.Anything, lineDrop.ID).Return(nil)
	orders.On("UpdateStatus", mock.Anything, order.ID, models.OrderStatusPartiallyCancelled, mock.Anything).Return(nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportUpdated, outcome)
	// PARTIALLY_CANCELLED outranks INVOICED; the paid status must not be
	// written on top of it.
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, order.ID, models.OrderStatusInvoiced, mock.Anything)
	orders.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestReconcileLogsSkipWhenNothingChanged(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	core, logs := observer.New(zap.InfoLevel)

	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusPending,
		Lines:         []models.OrderLine{{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}},
	}

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)

	svc := NewOrderSyncService(orders, NewUpsertMapper(links), zap.New(core))
	outcome, err := svc.ImportOrder(context.Background(), integration, client, externalOrder())

	assert.NoError(t, err)
	assert.Equal(t, ImportSkipped, outcome)

	entries := logs.FilterMessage("order already exists, skipped").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "ORD-1001", entries[0].ContextMap()["externalCode"])
	}
}

func TestReconcileFullCancellation(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusPending,
		Lines:         []models.OrderLine{{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}},
	}

	cancelledAt := time.Now()
	ext := externalOrder()
	ext.CancelledAt = &cancelledAt

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)
	orders.On("UpdateStatus", mock.Anything, order.ID, models.OrderStatusCancelled, mock.Anything).Return(nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportUpdated, outcome)
}

func TestReconcileRefusesCancellationAfterInvoice(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	invoicedAt := time.Now().Add(-time.Hour)
	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusInvoiced,
		InvoicedAt:    &invoicedAt,
		Lines:         []models.OrderLine{{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}},
	}

	cancelledAt := time.Now()
	ext := externalOrder()
	ext.CancelledAt = &cancelledAt

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportSkipped, outcome)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileMonotonicStatusProgression(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusInvoiced,
		Lines:         []models.OrderLine{{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}},
	}

	ext := externalOrder()
	ext.Status = "shipped"
	ext.LineItems[0].LineID = "L1"

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)
	orders.On("UpdateStatus", mock.Anything, order.ID, models.OrderStatusFulfilled, mock.Anything).Return(nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportUpdated, outcome)
}

func TestReconcileIgnoresStatusRegression(t *testing.T) {
	orders := new(MockOrderStore)
	links := new(MockLinkStore)
	client := new(MockPlatformClient)
	integration := testIntegration()

	fulfilledAt := time.Now().Add(-time.Hour)
	order := &models.OrderRecord{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		ExternalCode:  "ORD-1001",
		Status:        models.OrderStatusFulfilled,
		FulfilledAt:   &fulfilledAt,
		Lines:         []models.OrderLine{{ID: uuid.New(), ExternalLineID: "L1", SKU: "SKU-A", Quantity: 2}},
	}

	ext := externalOrder()
	ext.Status = "pending"

	orders.On("GetByExternalCode", mock.Anything, integration.ID, "ORD-1001").Return(order, nil)

	svc := newTestOrderSync(orders, links)
	outcome, err := svc.ImportOrder(context.Background(), integration, client, ext)

	assert.NoError(t, err)
	assert.Equal(t, ImportSkipped, outcome)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, models.OrderStatusPending.CanTransitionTo(models.OrderStatusInvoiced))
	assert.True(t, models.OrderStatusInvoiced.CanTransitionTo(models.OrderStatusFulfilled))
	assert.True(t, models.OrderStatusPending.CanTransitionTo(models.OrderStatusCancelled))
	assert.False(t, models.OrderStatusFulfilled.CanTransitionTo(models.OrderStatusInvoiced))
	assert.False(t, models.OrderStatusCancelled.CanTransitionTo(models.OrderStatusPending))
}
