package shopify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"golang.org/x/time/rate"
)

const (
	apiVersion = "2024-01"
)

// ShopifyClient implements PlatformClient for the Shopify Admin API.
type ShopifyClient struct {
	httpClient  *http.Client
	storeURL    string
	accessToken string
	apiSecret   string
	rateLimiter *rate.Limiter
}

// NewShopifyClient creates a new Shopify Admin API client.
func NewShopifyClient() *ShopifyClient {
	return &ShopifyClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(2), 1), // 2 requests per second
	}
}

// Platform returns the platform type.
func (c *ShopifyClient) Platform() models.PlatformType {
	return models.PlatformShopify
}

// Initialize sets up the client with credentials.
func (c *ShopifyClient) Initialize(ctx context.Context, endpoint string, credentials map[string]interface{}) error {
	if endpoint != "" {
		c.storeURL = strings.TrimSuffix(endpoint, "/")
	} else {
		store, ok := credentials["store"].(string)
		if !ok || store == "" {
			return clients.NewAuthenticationError("missing store name")
		}
		c.storeURL = fmt.Sprintf("https://%s.myshopify.com", store)
	}

	accessToken, ok := credentials["access_token"].(string)
	if !ok || accessToken == "" {
		return clients.NewAuthenticationError("missing access_token")
	}
	c.accessToken = accessToken

	if apiSecret, ok := credentials["api_secret"].(string); ok {
		c.apiSecret = apiSecret
	}

	return nil
}

// TestConnection verifies the connection is working.
func (c *ShopifyClient) TestConnection(ctx context.Context) error {
	_, _, err := c.doRequest(ctx, "GET", "/shop.json", nil, nil)
	return err
}

// RefreshToken - Shopify access tokens don't expire, so this is a no-op.
func (c *ShopifyClient) RefreshToken(ctx context.Context) (*clients.TokenResult, error) {
	return &clients.TokenResult{
		AccessToken: c.accessToken,
		ExpiresAt:   time.Now().Add(365 * 24 * time.Hour),
	}, nil
}

type shopifyLineItem struct {
	ID              int64  `json:"id"`
	VariantID       int64  `json:"variant_id"`
	Title           string `json:"title"`
	SKU             string `json:"sku"`
	Quantity        int    `json:"quantity"`
	CurrentQuantity *int   `json:"current_quantity,omitempty"`
	Price           string `json:"price"`
}

type shopifyAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
	Phone    string `json:"phone"`
}

type shopifyCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type shopifyOrder struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	FinancialStatus string           `json:"financial_status"`
	Currency        string           `json:"currency"`
	TotalPrice      string           `json:"total_price"`
	TotalTax        string           `json:"total_tax"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CancelledAt     *time.Time       `json:"cancelled_at"`
	LineItems       []shopifyLineItem `json:"line_items"`
	ShippingAddress *shopifyAddress  `json:"shipping_address"`
	Customer        *shopifyCustomer `json:"customer"`
}

// FetchOrders fetches one page of orders using page_info cursors from the
// Link response header.
func (c *ShopifyClient) FetchOrders(ctx context.Context, opts *clients.OrderListOptions) (*clients.OrdersPage, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	} else {
		params.Set("limit", "50")
	}
	params.Set("status", "any")
	if opts.Cursor != "" {
		// A page_info cursor cannot be combined with filters.
		params = url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		params.Set("page_info", opts.Cursor)
	} else if !opts.UpdatedAfter.IsZero() {
		params.Set("updated_at_min", opts.UpdatedAfter.Format(time.RFC3339))
	}

	body, headers, err := c.doRequest(ctx, "GET", "/orders.json", params, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Orders []shopifyOrder `json:"orders"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse orders response: %v", err))
	}

	orders := make([]clients.ExternalOrder, 0, len(response.Orders))
	for _, o := range response.Orders {
		orders = append(orders, convertShopifyOrder(o))
	}

	nextCursor := ""
	hasMore := false
	if linkHeader := headers.Get("Link"); linkHeader != "" {
		nextCursor, hasMore = parseShopifyPagination(linkHeader)
	}

	return &clients.OrdersPage{
		Orders:     orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// FetchOrder fetches a single order by ID.
func (c *ShopifyClient) FetchOrder(ctx context.Context, externalCode string) (*clients.ExternalOrder, error) {
	body, _, err := c.doRequest(ctx, "GET", fmt.Sprintf("/orders/%s.json", externalCode), nil, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Order shopifyOrder `json:"order"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse order response: %v", err))
	}

	order := convertShopifyOrder(response.Order)
	return &order, nil
}

// FetchProduct fetches a single product by ID.
func (c *ShopifyClient) FetchProduct(ctx context.Context, externalCode string) (*clients.ExternalProduct, error) {
	body, _, err := c.doRequest(ctx, "GET", fmt.Sprintf("/products/%s.json", externalCode), nil, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Product struct {
			ID       int64  `json:"id"`
			Title    string `json:"title"`
			Variants []struct {
				ID  int64  `json:"id"`
				SKU string `json:"sku"`
			} `json:"variants"`
		} `json:"product"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse product response: %v", err))
	}

	product := &clients.ExternalProduct{
		Code:  strconv.FormatInt(response.Product.ID, 10),
		Title: response.Product.Title,
	}
	if len(response.Product.Variants) > 0 {
		product.VariantID = strconv.FormatInt(response.Product.Variants[0].ID, 10)
		product.SKU = response.Product.Variants[0].SKU
	}

	return product, nil
}

// PushInventory sets inventory levels one item at a time. ExternalCode is the
// inventory_item_id, ExternalLocation the location_id.
func (c *ShopifyClient) PushInventory(ctx context.Context, updates []clients.InventoryUpdate) (map[string]clients.PushResult, error) {
	results := make(map[string]clients.PushResult, len(updates))

	for _, update := range updates {
		payload := map[string]interface{}{
			"inventory_item_id": update.ExternalCode,
			"location_id":       update.ExternalLocation,
			"available":         update.Quantity,
		}

		_, _, err := c.doRequest(ctx, "POST", "/inventory_levels/set.json", nil, payload)
		if err != nil {
			if pe, ok := clients.AsProviderError(err); ok && pe.StatusCode == http.StatusNotFound {
				results[update.SKU] = clients.PushResult{Status: clients.PushNotFound, Message: pe.Description}
				continue
			}
			results[update.SKU] = clients.PushResult{Status: clients.PushFailed, Message: err.Error()}
			continue
		}
		results[update.SKU] = clients.PushResult{Status: clients.PushSuccess}
	}

	return results, nil
}

// VerifyWebhook verifies a Shopify webhook signature (X-Shopify-Hmac-Sha256:
// base64 HMAC-SHA256 over the raw body).
func (c *ShopifyClient) VerifyWebhook(payload []byte, signature string, secret string) error {
	if secret == "" {
		secret = c.apiSecret
	}
	if secret == "" {
		return clients.NewAuthenticationError("no webhook secret configured")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expectedSignature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return clients.NewAuthenticationError("invalid webhook signature")
	}

	return nil
}

// ParseWebhook parses a Shopify webhook payload.
func (c *ShopifyClient) ParseWebhook(payload []byte) (*clients.WebhookEvent, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("invalid webhook payload: %v", err))
	}

	resourceCode := ""
	if id, ok := event["id"].(float64); ok {
		resourceCode = strconv.FormatInt(int64(id), 10)
	}

	return &clients.WebhookEvent{
		EventID:      fmt.Sprintf("%v", event["admin_graphql_api_id"]),
		ResourceCode: resourceCode,
		Payload:      event,
		Timestamp:    time.Now(),
	}, nil
}

// doRequest performs an authenticated HTTP request against the Admin API.
func (c *ShopifyClient) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, http.Header, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	fullURL := fmt.Sprintf("%s/admin/api/%s%s", c.storeURL, apiVersion, path)
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, clients.NewTransientError("NETWORK", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, clients.NewTransientError("NETWORK", err.Error())
	}

	if resp.StatusCode >= 400 {
		return nil, nil, clients.ClassifyStatus(resp.StatusCode, string(respBody))
	}

	return respBody, resp.Header, nil
}

func convertShopifyOrder(o shopifyOrder) clients.ExternalOrder {
	order := clients.ExternalOrder{
		Code:        strconv.FormatInt(o.ID, 10),
		Status:      o.FinancialStatus,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CancelledAt: o.CancelledAt,
	}
	order.TotalAmount, _ = strconv.ParseFloat(o.TotalPrice, 64)
	order.TaxAmount, _ = strconv.ParseFloat(o.TotalTax, 64)

	for _, item := range o.LineItems {
		line := clients.ExternalLineItem{
			LineID:    strconv.FormatInt(item.ID, 10),
			SKU:       item.SKU,
			VariantID: strconv.FormatInt(item.VariantID, 10),
			Title:     item.Title,
			Quantity:  float64(item.Quantity),
		}
		line.UnitPrice, _ = strconv.ParseFloat(item.Price, 64)

		// Refunded lines report a reduced current quantity; zero means the
		// line is gone.
		if item.CurrentQuantity != nil {
			if *item.CurrentQuantity == 0 {
				line.Cancelled = true
			} else {
				line.Quantity = float64(*item.CurrentQuantity)
			}
		}
		if o.CancelledAt != nil {
			line.Cancelled = true
		}
		order.LineItems = append(order.LineItems, line)
	}

	if o.Customer != nil {
		order.Customer = &clients.ExternalCustomer{
			ExternalID: strconv.FormatInt(o.Customer.ID, 10),
			Name:       strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName),
			Email:      o.Customer.Email,
			Phone:      o.Customer.Phone,
		}
	}
	if o.ShippingAddress != nil {
		order.Address = &clients.ExternalAddress{
			Address1:   o.ShippingAddress.Address1,
			Address2:   o.ShippingAddress.Address2,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.Province,
			PostalCode: o.ShippingAddress.Zip,
			Country:    o.ShippingAddress.Country,
		}
	}

	return order
}

// parseShopifyPagination extracts the next page_info cursor from a Link
// header: <url>; rel="previous", <url>; rel="next"
func parseShopifyPagination(linkHeader string) (string, bool) {
	parts := strings.Split(linkHeader, ",")
	for _, part := range parts {
		if strings.Contains(part, `rel="next"`) {
			urlPart := strings.TrimSpace(strings.Split(part, ";")[0])
			urlPart = strings.Trim(urlPart, "<>")
			if parsedURL, err := url.Parse(urlPart); err == nil {
				return parsedURL.Query().Get("page_info"), true
			}
		}
	}
	return "", false
}
