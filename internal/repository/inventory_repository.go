package repository

import (
	"context"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRepository handles database operations for warehouses and
// inventory snapshots
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// ListWarehouses retrieves all warehouses
func (r *InventoryRepository) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	err := r.db.WithContext(ctx).Find(&warehouses).Error
	return warehouses, err
}

// GetWarehouse retrieves one warehouse by ID
func (r *InventoryRepository) GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).First(&warehouse, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// CreateWarehouse inserts a new warehouse
func (r *InventoryRepository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

// GetSnapshots retrieves the snapshots for a set of items across a set of
// warehouses
func (r *InventoryRepository) GetSnapshots(ctx context.Context, itemKeys []uuid.UUID, warehouseIDs []uuid.UUID) ([]models.InventorySnapshot, error) {
	var snapshots []models.InventorySnapshot
	query := r.db.WithContext(ctx).Where("item_key IN ?", itemKeys)
	if len(warehouseIDs) > 0 {
		query = query.Where("warehouse_id IN ?", warehouseIDs)
	}
	err := query.Find(&snapshots).Error
	return snapshots, err
}

// GetSnapshotsByItem retrieves all snapshots for one item
func (r *InventoryRepository) GetSnapshotsByItem(ctx context.Context, itemKey uuid.UUID) ([]models.InventorySnapshot, error) {
	var snapshots []models.InventorySnapshot
	err := r.db.WithContext(ctx).
		Where("item_key = ?", itemKey).
		Find(&snapshots).Error
	return snapshots, err
}

// UpsertSnapshot writes a stock position, bumping LastModified so the next
// reconciliation pass sees the change
func (r *InventoryRepository) UpsertSnapshot(ctx context.Context, snapshot *models.InventorySnapshot) error {
	var existing models.InventorySnapshot
	err := r.db.WithContext(ctx).
		Where("item_key = ? AND warehouse_id = ?", snapshot.ItemKey, snapshot.WarehouseID).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).
			Model(&existing).
			Updates(map[string]interface{}{
				"actual_qty":    snapshot.ActualQty,
				"reserved_qty":  snapshot.ReservedQty,
				"last_modified": snapshot.LastModified,
			}).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}
