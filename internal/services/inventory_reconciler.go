package services

import (
	"context"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPushBatchSize is how many stock levels go out per API call.
const DefaultPushBatchSize = 50

// InventoryDelta is one stock level that must be pushed outward, together
// with the link and watermark needed to record the push.
type InventoryDelta struct {
	Link      models.SyncLinkRecord
	Update    clients.InventoryUpdate
	Watermark time.Time
}

// PushOutcome summarizes one inventory push.
type PushOutcome struct {
	Pushed   int
	NotFound int
	Failed   int
}

// InventoryReconciler computes which stock levels changed since the last
// successful push and sends them outward in batches. The staleness predicate
// is the core guarantee: a pair is pushed iff some snapshot's last_modified
// is newer than the link's last_synced_at (or the link has never synced).
type InventoryReconciler struct {
	links     LinkStore
	inventory InventoryStore
	logger    *zap.Logger
	batchSize int
}

// NewInventoryReconciler creates a reconciler.
func NewInventoryReconciler(links LinkStore, inventory InventoryStore, logger *zap.Logger) *InventoryReconciler {
	return &InventoryReconciler{
		links:     links,
		inventory: inventory,
		logger:    logger,
		batchSize: DefaultPushBatchSize,
	}
}

// ComputeDeltas returns the stale stock levels for an integration. When the
// integration's warehouse is a group, quantities are summed across its
// descendants and the watermark is the max last_modified among them.
func (r *InventoryReconciler) ComputeDeltas(ctx context.Context, integration *models.IntegrationConnection) ([]InventoryDelta, error) {
	warehouses, err := r.inventory.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	warehouseIDs := targetWarehouses(integration.WarehouseID, warehouses)

	links, err := r.links.ListByEntityType(ctx, integration.ID, models.EntityItem)
	if err != nil {
		return nil, err
	}

	itemKeys := make([]uuid.UUID, 0, len(links))
	linkByItem := make(map[uuid.UUID]*models.SyncLinkRecord, len(links))
	for i := range links {
		if links[i].SKU == nil || *links[i].SKU == "" {
			continue
		}
		itemKeys = append(itemKeys, links[i].InternalKey)
		linkByItem[links[i].InternalKey] = &links[i]
	}
	if len(itemKeys) == 0 {
		return nil, nil
	}

	snapshots, err := r.inventory.GetSnapshots(ctx, itemKeys, warehouseIDs)
	if err != nil {
		return nil, err
	}

	type rollup struct {
		available float64
		watermark time.Time
	}
	rollups := make(map[uuid.UUID]*rollup)
	for _, snap := range snapshots {
		agg, ok := rollups[snap.ItemKey]
		if !ok {
			agg = &rollup{}
			rollups[snap.ItemKey] = agg
		}
		agg.available += snap.AvailableQty()
		if snap.LastModified.After(agg.watermark) {
			agg.watermark = snap.LastModified
		}
	}

	var deltas []InventoryDelta
	for itemKey, agg := range rollups {
		link := linkByItem[itemKey]
		if link == nil {
			continue
		}
		if link.LastSyncedAt != nil && !agg.watermark.After(*link.LastSyncedAt) {
			continue
		}
		deltas = append(deltas, InventoryDelta{
			Link: *link,
			Update: clients.InventoryUpdate{
				SKU:          *link.SKU,
				ExternalCode: link.ExternalCode,
				// Platforms reject fractional stock; truncate, never round.
				Quantity: int64(agg.available),
			},
			Watermark: agg.watermark,
		})
	}

	return deltas, nil
}

// Push sends deltas outward in batches and advances each link's watermark on
// success. NOT_FOUND items are also marked synced: the external listing is
// gone and re-pushing the same quantity cannot bring it back. FAILED items
// keep their old watermark so the next cycle retries them.
func (r *InventoryReconciler) Push(ctx context.Context, client clients.PlatformClient, deltas []InventoryDelta) (*PushOutcome, error) {
	outcome := &PushOutcome{}

	for start := 0; start < len(deltas); start += r.batchSize {
		end := start + r.batchSize
		if end > len(deltas) {
			end = len(deltas)
		}
		batch := deltas[start:end]

		updates := make([]clients.InventoryUpdate, len(batch))
		for i, d := range batch {
			updates[i] = d.Update
		}

		results, err := client.PushInventory(ctx, updates)
		if err != nil {
			return outcome, err
		}

		for _, d := range batch {
			result, ok := results[d.Update.SKU]
			if !ok {
				result = clients.PushResult{Status: clients.PushFailed, Message: "no result reported"}
			}
			switch result.Status {
			case clients.PushSuccess:
				outcome.Pushed++
			case clients.PushNotFound:
				outcome.NotFound++
				r.logger.Warn("sku not found on platform",
					zap.String("sku", d.Update.SKU),
					zap.String("integration", d.Link.IntegrationID.String()))
			default:
				outcome.Failed++
				r.logger.Warn("inventory push failed",
					zap.String("sku", d.Update.SKU),
					zap.String("reason", result.Message))
				continue
			}

			if err := r.links.MarkSynced(ctx, d.Link.ID, d.Watermark); err != nil {
				return outcome, err
			}
		}
	}

	return outcome, nil
}

// targetWarehouses resolves the warehouse set an integration pushes from. A
// nil target means every warehouse. A group warehouse expands to all its
// descendants, transitively; a leaf is just itself.
func targetWarehouses(target *uuid.UUID, all []models.Warehouse) []uuid.UUID {
	if target == nil {
		ids := make([]uuid.UUID, len(all))
		for i, w := range all {
			ids[i] = w.ID
		}
		return ids
	}

	var targetWarehouse *models.Warehouse
	for i := range all {
		if all[i].ID == *target {
			targetWarehouse = &all[i]
			break
		}
	}
	if targetWarehouse == nil || !targetWarehouse.IsGroup(all) {
		return []uuid.UUID{*target}
	}

	children := make(map[uuid.UUID][]uuid.UUID)
	for _, w := range all {
		if w.ParentID != nil {
			children[*w.ParentID] = append(children[*w.ParentID], w.ID)
		}
	}

	var ids []uuid.UUID
	queue := children[*target]
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if kids := children[id]; len(kids) > 0 {
			queue = append(queue, kids...)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
