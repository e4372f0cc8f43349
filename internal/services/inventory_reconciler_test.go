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
)

func TestComputeDeltasAppliesStalenessFilter(t *testing.T) {
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)

	integration := &models.IntegrationConnection{ID: uuid.New()}
	warehouse := models.Warehouse{ID: uuid.New(), Code: "MAIN"}

	staleItem := uuid.New()
	freshItem := uuid.New()
	modified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	syncedBefore := modified.Add(-time.Hour)
	syncedAfter := modified.Add(time.Hour)

	linkRows := []models.SyncLinkRecord{
		{ID: uuid.New(), IntegrationID: integration.ID, EntityType: models.EntityItem, ExternalCode: "E1", SKU: strPtr("SKU-STALE"), InternalKey: staleItem, LastSyncedAt: &syncedBefore},
		{ID: uuid.New(), IntegrationID: integration.ID, EntityType: models.EntityItem, ExternalCode: "E2", SKU: strPtr("SKU-FRESH"), InternalKey: freshItem, LastSyncedAt: &syncedAfter},
	}

	snapshots := []models.InventorySnapshot{
		{ItemKey: staleItem, WarehouseID: warehouse.ID, ActualQty: 10, ReservedQty: 2, LastModified: modified},
		{ItemKey: freshItem, WarehouseID: warehouse.ID, ActualQty: 5, ReservedQty: 0, LastModified: modified},
	}

	inventory.On("ListWarehouses", mock.Anything).Return([]models.Warehouse{warehouse}, nil)
	links.On("ListByEntityType", mock.Anything, integration.ID, models.EntityItem).Return(linkRows, nil)
	inventory.On("GetSnapshots", mock.Anything, mock.Anything, mock.Anything).Return(snapshots, nil)

	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())
	deltas, err := reconciler.ComputeDeltas(context.Background(), integration)

	assert.NoError(t, err)
	assert.Len(t, deltas, 1)
	assert.Equal(t, "SKU-STALE", deltas[0].Update.SKU)
	assert.Equal(t, int64(8), deltas[0].Update.Quantity)
	assert.Equal(t, modified, deltas[0].Watermark)
}

func TestComputeDeltasIncludesNeverSyncedItems(t *testing.T) {
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)

	integration := &models.IntegrationConnection{ID: uuid.New()}
	itemKey := uuid.New()
	warehouse := models.Warehouse{ID: uuid.New()}

	linkRows := []models.SyncLinkRecord{
		{ID: uuid.New(), SKU: strPtr("SKU-NEW"), ExternalCode: "E1", InternalKey: itemKey},
	}
	snapshots := []models.InventorySnapshot{
		{ItemKey: itemKey, WarehouseID: warehouse.ID, ActualQty: 3, LastModified: time.Now()},
	}

	inventory.On("ListWarehouses", mock.Anything).Return([]models.Warehouse{warehouse}, nil)
	links.On("ListByEntityType", mock.Anything, integration.ID, models.EntityItem).Return(linkRows, nil)
	inventory.On("GetSnapshots", mock.Anything, mock.Anything, mock.Anything).Return(snapshots, nil)

	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())
	deltas, err := reconciler.ComputeDeltas(context.Background(), integration)

	assert.NoError(t, err)
	assert.Len(t, deltas, 1)
}

func TestComputeDeltasAggregatesGroupWarehouse(t *testing.T) {
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)

	parent := models.Warehouse{ID: uuid.New(), Code: "GROUP"}
	childA := models.Warehouse{ID: uuid.New(), Code: "A", ParentID: &parent.ID}
	childB := models.Warehouse{ID: uuid.New(), Code: "B", ParentID: &parent.ID}

	integration := &models.IntegrationConnection{ID: uuid.New(), WarehouseID: &parent.ID}
	itemKey := uuid.New()

	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(2 * time.Hour)

	linkRows := []models.SyncLinkRecord{
		{ID: uuid.New(), SKU: strPtr("SKU-G"), ExternalCode: "EG", InternalKey: itemKey},
	}
	snapshots := []models.InventorySnapshot{
		{ItemKey: itemKey, WarehouseID: childA.ID, ActualQty: 4.6, ReservedQty: 1, LastModified: older},
		{ItemKey: itemKey, WarehouseID: childB.ID, ActualQty: 3.3, ReservedQty: 0.5, LastModified: newer},
	}

	inventory.On("ListWarehouses", mock.Anything).Return([]models.Warehouse{parent, childA, childB}, nil)
	links.On("ListByEntityType", mock.Anything, integration.ID, models.EntityItem).Return(linkRows, nil)
	inventory.On("GetSnapshots", mock.Anything, mock.Anything, mock.MatchedBy(func(ids []uuid.UUID) bool {
		// The group expands to descendants only, never itself.
		return len(ids) == 2
	})).Return(snapshots, nil)

	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())
	deltas, err := reconciler.ComputeDeltas(context.Background(), integration)

	assert.NoError(t, err)
	assert.Len(t, deltas, 1)
	// 4.6+3.3 actual, 1+0.5 reserved -> 6.4 available, truncated to 6.
	assert.Equal(t, int64(6), deltas[0].Update.Quantity)
	assert.Equal(t, newer, deltas[0].Watermark)
}

func TestPushMarksSuccessAndNotFoundSynced(t *testing.T) {
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)
	client := new(MockPlatformClient)

	watermark := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	okLink := models.SyncLinkRecord{ID: uuid.New()}
	goneLink := models.SyncLinkRecord{ID: uuid.New()}
	badLink := models.SyncLinkRecord{ID: uuid.New()}

	deltas := []InventoryDelta{
		{Link: okLink, Update: clients.InventoryUpdate{SKU: "OK"}, Watermark: watermark},
		{Link: goneLink, Update: clients.InventoryUpdate{SKU: "GONE"}, Watermark: watermark},
		{Link: badLink, Update: clients.InventoryUpdate{SKU: "BAD"}, Watermark: watermark},
	}

	client.On("PushInventory", mock.Anything, mock.Anything).Return(map[string]clients.PushResult{
		"OK":   {Status: clients.PushSuccess},
		"GONE": {Status: clients.PushNotFound},
		"BAD":  {Status: clients.PushFailed, Message: "rejected"},
	}, nil)

	links.On("MarkSynced", mock.Anything, okLink.ID, watermark).Return(nil)
	links.On("MarkSynced", mock.Anything, goneLink.ID, watermark).Return(nil)

	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())
	outcome, err := reconciler.Push(context.Background(), client, deltas)

	assert.NoError(t, err)
	assert.Equal(t, 1, outcome.Pushed)
	assert.Equal(t, 1, outcome.NotFound)
	assert.Equal(t, 1, outcome.Failed)
	// Failed items keep their stale watermark for the next cycle.
	links.AssertNotCalled(t, "MarkSynced", mock.Anything, badLink.ID, mock.Anything)
}

func TestPushBatchesFixedSize(t *testing.T) {
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)
	client := new(MockPlatformClient)

	var deltas []InventoryDelta
	results := map[string]clients.PushResult{}
	for i := 0; i < DefaultPushBatchSize+10; i++ {
		sku := uuid.NewString()
		deltas = append(deltas, InventoryDelta{
			Link:   models.SyncLinkRecord{ID: uuid.New()},
			Update: clients.InventoryUpdate{SKU: sku},
		})
		results[sku] = clients.PushResult{Status: clients.PushSuccess}
	}

	client.On("PushInventory", mock.Anything, mock.MatchedBy(func(updates []clients.InventoryUpdate) bool {
		return len(updates) <= DefaultPushBatchSize
	})).Return(results, nil).Twice()
	links.On("MarkSynced", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())
	outcome, err := reconciler.Push(context.Background(), client, deltas)

	assert.NoError(t, err)
	assert.Equal(t, DefaultPushBatchSize+10, outcome.Pushed)
	client.AssertNumberOfCalls(t, "PushInventory", 2)
}

func TestQuantityTruncatesNotRounds(t *testing.T) {
	links := new(MockLinkStore)
	inventory := new(MockInventoryStore)

	integration := &models.IntegrationConnection{ID: uuid.New()}
	itemKey := uuid.New()
	warehouse := models.Warehouse{ID: uuid.New()}

	linkRows := []models.SyncLinkRecord{
		{ID: uuid.New(), SKU: strPtr("SKU-T"), ExternalCode: "ET", InternalKey: itemKey},
	}
	snapshots := []models.InventorySnapshot{
		{ItemKey: itemKey, WarehouseID: warehouse.ID, ActualQty: 7.9, LastModified: time.Now()},
	}

	inventory.On("ListWarehouses", mock.Anything).Return([]models.Warehouse{warehouse}, nil)
	links.On("ListByEntityType", mock.Anything, integration.ID, models.EntityItem).Return(linkRows, nil)
	inventory.On("GetSnapshots", mock.Anything, mock.Anything, mock.Anything).Return(snapshots, nil)

	reconciler := NewInventoryReconciler(links, inventory, zap.NewNop())
	deltas, err := reconciler.ComputeDeltas(context.Background(), integration)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), deltas[0].Update.Quantity)
}
