package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus mirrors the external platform's status machine. Transitions are
// monotonic: a status never moves to one with a lower rank.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "PENDING"
	OrderStatusInvoiced           OrderStatus = "INVOICED"
	OrderStatusFulfilled          OrderStatus = "FULFILLED"
	OrderStatusPartiallyCancelled OrderStatus = "PARTIALLY_CANCELLED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:            0,
	OrderStatusInvoiced:           1,
	OrderStatusFulfilled:          2,
	OrderStatusPartiallyCancelled: 3,
	OrderStatusCancelled:          4,
}

// CanTransitionTo reports whether moving from s to next keeps the status
// machine monotonic.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderStatusRank[next] >= orderStatusRank[s]
}

// OrderRecord is the internal representation of a synced order. Exactly one
// row exists per (integration, external code); re-syncs of the same code are
// status-only updates.
type OrderRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	IntegrationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_orders_external,priority:1" json:"integrationId"`
	ExternalCode  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_external,priority:2" json:"externalCode"`

	Status     OrderStatus `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_orders_status" json:"status"`
	CustomerID uuid.UUID   `gorm:"type:uuid;not null;index:idx_orders_customer" json:"customerId"`

	Currency       string  `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	TotalAmount    float64 `gorm:"type:decimal(12,2)" json:"totalAmount"`
	TaxAmount      float64 `gorm:"type:decimal(12,2)" json:"taxAmount"`
	ShippingAmount float64 `gorm:"type:decimal(12,2)" json:"shippingAmount"`

	// Downstream markers. A non-nil InvoicedAt makes the order immutable for
	// line-level cancellation reconciliation.
	InvoicedAt  *time.Time `json:"invoicedAt,omitempty"`
	FulfilledAt *time.Time `json:"fulfilledAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	OrderDate time.Time `json:"orderDate"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	Lines []OrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

// TableName specifies the table name for OrderRecord
func (OrderRecord) TableName() string {
	return "integration_orders"
}

// IsMutable reports whether line items may still be removed or requantified.
func (o *OrderRecord) IsMutable() bool {
	return o.InvoicedAt == nil && o.FulfilledAt == nil && o.CancelledAt == nil
}

// OrderLine is one line item of a synced order, allocated to a warehouse.
type OrderLine struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;index:idx_order_lines_order" json:"orderId"`
	ExternalLineID string    `gorm:"type:varchar(255)" json:"externalLineId,omitempty"`

	SKU     string    `gorm:"type:varchar(255);not null" json:"sku"`
	ItemKey uuid.UUID `gorm:"type:uuid;not null" json:"itemKey"`

	WarehouseID *uuid.UUID `gorm:"type:uuid" json:"warehouseId,omitempty"`

	Quantity  float64 `gorm:"type:decimal(18,6);not null" json:"quantity"`
	UnitPrice float64 `gorm:"type:decimal(12,2)" json:"unitPrice"`

	Cancelled bool `gorm:"default:false" json:"cancelled"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for OrderLine
func (OrderLine) TableName() string {
	return "integration_order_lines"
}

// Customer is an internal customer record created from external order data.
// Deduplication is by exact match on name and every address field; any
// difference, however trivial, produces a new customer.
type Customer struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"type:varchar(255);not null;index:idx_customers_name" json:"name"`

	Email string `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone string `gorm:"type:varchar(50)" json:"phone,omitempty"`

	Address1   string `gorm:"type:varchar(500)" json:"address1,omitempty"`
	Address2   string `gorm:"type:varchar(500)" json:"address2,omitempty"`
	City       string `gorm:"type:varchar(255)" json:"city,omitempty"`
	State      string `gorm:"type:varchar(255)" json:"state,omitempty"`
	PostalCode string `gorm:"type:varchar(50)" json:"postalCode,omitempty"`
	Country    string `gorm:"type:varchar(100)" json:"country,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Customer
func (Customer) TableName() string {
	return "integration_customers"
}

// AddressMatches reports whether every compared address field matches exactly.
func (c *Customer) AddressMatches(other *Customer) bool {
	return c.Name == other.Name &&
		c.Address1 == other.Address1 &&
		c.Address2 == other.Address2 &&
		c.City == other.City &&
		c.State == other.State &&
		c.PostalCode == other.PostalCode &&
		c.Country == other.Country
}

// Item is a minimal internal item record materialized on first import of an
// external product.
type Item struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SKU  string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"sku"`
	Name string    `gorm:"type:varchar(500);not null" json:"name"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Item
func (Item) TableName() string {
	return "integration_items"
}
