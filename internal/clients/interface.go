package clients

import (
	"context"
	"time"

	"erp-sync-service/internal/models"
)

// PlatformClient defines the interface every commerce platform client
// implements.
type PlatformClient interface {
	// Platform returns the platform type this client talks to.
	Platform() models.PlatformType

	// Initialize sets up the client with an endpoint and credential material.
	// Clients that hold expiring tokens refresh them here when needed.
	Initialize(ctx context.Context, endpoint string, credentials map[string]interface{}) error

	// TestConnection verifies the credentials with a cheap live call.
	TestConnection(ctx context.Context) error

	// RefreshToken refreshes OAuth tokens if the platform uses them.
	RefreshToken(ctx context.Context) (*TokenResult, error)

	// FetchOrders returns one page of orders for the cursor in opts.
	FetchOrders(ctx context.Context, opts *OrderListOptions) (*OrdersPage, error)

	// FetchOrder returns a single order by its external code.
	FetchOrder(ctx context.Context, externalCode string) (*ExternalOrder, error)

	// FetchProduct returns a single product by its external code, used by the
	// product-import sub-flow when an order references an unmapped SKU.
	FetchProduct(ctx context.Context, externalCode string) (*ExternalProduct, error)

	// PushInventory sends stock levels outward and reports a per-item result.
	// One failed item never fails the whole batch.
	PushInventory(ctx context.Context, updates []InventoryUpdate) (map[string]PushResult, error)

	// VerifyWebhook checks an HMAC-SHA256 signature over the raw payload.
	VerifyWebhook(payload []byte, signature string, secret string) error

	// ParseWebhook parses a verified payload into a normalized event.
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}

// OrderListOptions carries pagination and filter state for order pulls.
type OrderListOptions struct {
	Limit        int
	Cursor       string
	UpdatedAfter time.Time
	CreatedAfter time.Time
}

// TokenResult contains the result of a token refresh operation.
type TokenResult struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
}

// OrdersPage contains one page of order results.
type OrdersPage struct {
	Orders     []ExternalOrder
	NextCursor string
	HasMore    bool
}

// ExternalOrder represents an order as reported by the platform.
type ExternalOrder struct {
	Code           string             `json:"code"`
	Status         string             `json:"status"`
	Currency       string             `json:"currency"`
	TotalAmount    float64            `json:"totalAmount"`
	TaxAmount      float64            `json:"taxAmount"`
	ShippingAmount float64            `json:"shippingAmount"`
	LineItems      []ExternalLineItem `json:"lineItems"`
	Customer       *ExternalCustomer  `json:"customer,omitempty"`
	Address        *ExternalAddress   `json:"address,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	CancelledAt    *time.Time         `json:"cancelledAt,omitempty"`
}

// ExternalLineItem is one order line as reported by the platform.
type ExternalLineItem struct {
	LineID    string  `json:"lineId"`
	SKU       string  `json:"sku"`
	VariantID string  `json:"variantId,omitempty"`
	Title     string  `json:"title"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Cancelled bool    `json:"cancelled"`
}

// ExternalCustomer is the buyer as reported by the platform.
type ExternalCustomer struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ExternalAddress is a shipping address as reported by the platform.
type ExternalAddress struct {
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// ExternalProduct represents a product as reported by the platform.
type ExternalProduct struct {
	Code      string `json:"code"`
	VariantID string `json:"variantId,omitempty"`
	SKU       string `json:"sku"`
	Title     string `json:"title"`
}

// InventoryUpdate is one outbound stock level for an external location.
// Quantity is already truncated to a whole number; platforms reject
// fractional stock.
type InventoryUpdate struct {
	SKU              string `json:"sku"`
	ExternalCode     string `json:"externalCode"`
	ExternalLocation string `json:"externalLocation,omitempty"`
	Quantity         int64  `json:"quantity"`
}

// PushStatus classifies the outcome of pushing one item's stock.
type PushStatus string

const (
	PushSuccess  PushStatus = "SUCCESS"
	PushNotFound PushStatus = "NOT_FOUND"
	PushFailed   PushStatus = "FAILED"
)

// PushResult is the per-item outcome of an inventory push.
type PushResult struct {
	Status  PushStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// WebhookEvent represents a parsed webhook event.
type WebhookEvent struct {
	EventID      string                 `json:"eventId"`
	EventType    string                 `json:"eventType"`
	ResourceCode string                 `json:"resourceCode"`
	Payload      map[string]interface{} `json:"payload"`
	Timestamp    time.Time              `json:"timestamp"`
}

// UnsupportedPlatformError is returned when a platform type has no client.
type UnsupportedPlatformError struct {
	PlatformType string
}

func (e *UnsupportedPlatformError) Error() string {
	return "unsupported platform: " + e.PlatformType
}
