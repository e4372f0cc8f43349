package repository

import (
	"context"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository handles database operations for synced orders, their
// customers and items
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order with its lines in one transaction
func (r *OrderRepository) Create(ctx context.Context, order *models.OrderRecord) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByExternalCode retrieves an order with its lines by external code
func (r *OrderRepository) GetByExternalCode(ctx context.Context, integrationID uuid.UUID, externalCode string) (*models.OrderRecord, error) {
	var order models.OrderRecord
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("integration_id = ? AND external_code = ?", integrationID, externalCode).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByIntegration retrieves orders for an integration, newest first
func (r *OrderRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]models.OrderRecord, error) {
	var orders []models.OrderRecord
	query := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("order_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&orders).Error
	return orders, err
}

// ListOpenOrders retrieves orders still awaiting a terminal status
func (r *OrderRepository) ListOpenOrders(ctx context.Context, integrationID uuid.UUID) ([]models.OrderRecord, error) {
	var orders []models.OrderRecord
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("integration_id = ? AND status NOT IN ?", integrationID,
			[]models.OrderStatus{models.OrderStatusFulfilled, models.OrderStatusCancelled}).
		Find(&orders).Error
	return orders, err
}

// UpdateStatus sets the order status and the marker timestamp that goes with
// it. Monotonicity is enforced by the caller via CanTransitionTo.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	switch status {
	case models.OrderStatusInvoiced:
		updates["invoiced_at"] = at
	case models.OrderStatusFulfilled:
		updates["fulfilled_at"] = at
	case models.OrderStatusCancelled:
		updates["cancelled_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderRecord{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// CancelLine marks one order line as cancelled
func (r *OrderRepository) CancelLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("id = ?", lineID).
		Update("cancelled", true).Error
}

// UpdateLineQuantity changes the quantity of one order line
func (r *OrderRepository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity float64) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

// FindCustomersByName retrieves all customers sharing a name. Address
// comparison happens in the service; names alone never dedupe.
func (r *OrderRepository) FindCustomersByName(ctx context.Context, name string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Find(&customers).Error
	return customers, err
}

// CreateCustomer inserts a new customer record
func (r *OrderRepository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// FindItemBySKU retrieves an item by SKU
func (r *OrderRepository) FindItemBySKU(ctx context.Context, sku string) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new item record
func (r *OrderRepository) CreateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}
