package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse represents a stock location. A warehouse with children acts as a
// group: external locations mapped to it aggregate stock across descendants.
type Warehouse struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Code     string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"code"`
	Name     string     `gorm:"type:varchar(255);not null" json:"name"`
	ParentID *uuid.UUID `gorm:"type:uuid;index:idx_warehouses_parent" json:"parentId,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Warehouse
func (Warehouse) TableName() string {
	return "warehouses"
}

// IsGroup reports whether this warehouse is a parent of others. Callers pass
// the set of known warehouses; group membership is not stored on the row.
func (w *Warehouse) IsGroup(all []Warehouse) bool {
	for _, other := range all {
		if other.ParentID != nil && *other.ParentID == w.ID {
			return true
		}
	}
	return false
}

// InventorySnapshot holds the current stock position of one item in one
// warehouse. LastModified is bumped by every stock mutation; the reconciler
// compares it against the sync link's watermark to decide what to push.
type InventorySnapshot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ItemKey     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_item_wh,priority:1" json:"itemKey"`
	SKU         string    `gorm:"type:varchar(255);not null;index:idx_inventory_sku" json:"sku"`
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_item_wh,priority:2" json:"warehouseId"`

	ActualQty   float64 `gorm:"type:decimal(18,6);default:0" json:"actualQty"`
	ReservedQty float64 `gorm:"type:decimal(18,6);default:0" json:"reservedQty"`

	LastModified time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_inventory_modified" json:"lastModified"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for InventorySnapshot
func (InventorySnapshot) TableName() string {
	return "inventory_snapshots"
}

// AvailableQty returns the quantity free to promise.
func (s *InventorySnapshot) AvailableQty() float64 {
	return s.ActualQty - s.ReservedQty
}
