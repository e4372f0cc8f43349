package unicommerce

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"golang.org/x/time/rate"
)

const defaultPageSize = 50

// UnicommerceClient implements PlatformClient for the Unicommerce API.
// Auth is a bearer token from the OAuth2 password grant, refreshed with the
// refresh-token grant before expiry. Pagination is plain page numbers.
type UnicommerceClient struct {
	httpClient   *http.Client
	baseURL      string
	facility     string
	username     string
	password     string
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
	rateLimiter  *rate.Limiter
}

// NewUnicommerceClient creates a new Unicommerce client.
func NewUnicommerceClient() *UnicommerceClient {
	return &UnicommerceClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(3), 1),
	}
}

// Platform returns the platform type.
func (c *UnicommerceClient) Platform() models.PlatformType {
	return models.PlatformUnicommerce
}

// Initialize sets up the client with credentials and obtains a token if the
// stored one is missing or stale.
func (c *UnicommerceClient) Initialize(ctx context.Context, endpoint string, credentials map[string]interface{}) error {
	if endpoint == "" {
		return clients.NewAuthenticationError("missing endpoint")
	}
	c.baseURL = endpoint

	username, _ := credentials["username"].(string)
	password, _ := credentials["password"].(string)
	if username == "" || password == "" {
		return clients.NewAuthenticationError("missing username or password")
	}
	c.username = username
	c.password = password

	if facility, ok := credentials["facility"].(string); ok {
		c.facility = facility
	}
	if token, ok := credentials["access_token"].(string); ok {
		c.accessToken = token
	}
	if refresh, ok := credentials["refresh_token"].(string); ok {
		c.refreshToken = refresh
	}
	if expiresAt, ok := credentials["token_expires_at"].(string); ok {
		c.tokenExpiry, _ = time.Parse(time.RFC3339, expiresAt)
	}

	if c.accessToken == "" || time.Now().After(c.tokenExpiry.Add(-5*time.Minute)) {
		if _, err := c.RefreshToken(ctx); err != nil {
			return err
		}
	}

	return nil
}

// TestConnection verifies the credentials.
func (c *UnicommerceClient) TestConnection(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/services/rest/v1/facility", nil, nil)
	return err
}

// RefreshToken obtains a token via the refresh-token grant, falling back to
// the password grant when no refresh token is held.
func (c *UnicommerceClient) RefreshToken(ctx context.Context) (*clients.TokenResult, error) {
	params := url.Values{}
	if c.refreshToken != "" {
		params.Set("grant_type", "refresh_token")
		params.Set("refresh_token", c.refreshToken)
	} else {
		params.Set("grant_type", "password")
		params.Set("username", c.username)
		params.Set("password", c.password)
	}
	params.Set("client_id", "my-trusted-client")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/oauth/token?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, clients.NewTransientError("NETWORK", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// An expired refresh token falls back to the password grant once.
		if c.refreshToken != "" {
			c.refreshToken = ""
			return c.RefreshToken(ctx)
		}
		return nil, clients.NewAuthenticationError(fmt.Sprintf("token request failed: %s", string(body)))
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}

	c.accessToken = tokenResp.AccessToken
	c.refreshToken = tokenResp.RefreshToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return &clients.TokenResult{
		AccessToken:  c.accessToken,
		RefreshToken: c.refreshToken,
		ExpiresAt:    c.tokenExpiry,
	}, nil
}

type uniOrderItem struct {
	Code         string  `json:"code"`
	ItemSKU      string  `json:"itemSku"`
	Title        string  `json:"itemName"`
	Quantity     float64 `json:"quantity"`
	SellingPrice float64 `json:"sellingPrice"`
	StatusCode   string  `json:"statusCode"`
}

type uniOrder struct {
	Code          string         `json:"code"`
	DisplayCode   string         `json:"displayOrderCode"`
	Status        string         `json:"status"`
	Currency      string         `json:"currencyCode"`
	Total         float64        `json:"totalPrice"`
	Created       int64          `json:"created"`
	Updated       int64          `json:"updated"`
	Items         []uniOrderItem `json:"saleOrderItems"`
	CustomerName  string         `json:"customerName"`
	CustomerEmail string         `json:"notificationEmail"`
	Address       *struct {
		AddressLine1 string `json:"addressLine1"`
		AddressLine2 string `json:"addressLine2"`
		City         string `json:"city"`
		State        string `json:"state"`
		Pincode      string `json:"pincode"`
		Country      string `json:"country"`
	} `json:"shippingAddress"`
}

// FetchOrders searches sale orders one page at a time. The cursor is the
// one-based page number as a string.
func (c *UnicommerceClient) FetchOrders(ctx context.Context, opts *clients.OrderListOptions) (*clients.OrdersPage, error) {
	page := 1
	if opts.Cursor != "" {
		parsed, err := strconv.Atoi(opts.Cursor)
		if err != nil {
			return nil, clients.NewRequestError("CURSOR", "invalid page cursor: "+opts.Cursor)
		}
		page = parsed
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	payload := map[string]interface{}{
		"pageNumber":    page,
		"pageSize":      limit,
		"facilityCodes": []string{c.facility},
	}
	if !opts.UpdatedAfter.IsZero() {
		payload["updatedSinceInMinutes"] = int(time.Since(opts.UpdatedAfter).Minutes()) + 1
	}

	body, err := c.doRequest(ctx, "POST", "/services/rest/v1/oms/saleorder/search", nil, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		Orders     []uniOrder `json:"saleOrders"`
		TotalPages int        `json:"totalPages"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse order search response: %v", err))
	}

	orders := make([]clients.ExternalOrder, 0, len(response.Orders))
	for _, o := range response.Orders {
		orders = append(orders, convertUniOrder(o))
	}

	hasMore := page < response.TotalPages
	nextCursor := ""
	if hasMore {
		nextCursor = strconv.Itoa(page + 1)
	}

	return &clients.OrdersPage{Orders: orders, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// FetchOrder fetches a single sale order by code.
func (c *UnicommerceClient) FetchOrder(ctx context.Context, externalCode string) (*clients.ExternalOrder, error) {
	payload := map[string]interface{}{"code": externalCode}
	body, err := c.doRequest(ctx, "POST", "/services/rest/v1/oms/saleorder/get", nil, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		SaleOrderDTO uniOrder `json:"saleOrderDTO"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse order response: %v", err))
	}

	order := convertUniOrder(response.SaleOrderDTO)
	return &order, nil
}

// FetchProduct fetches an item master record by SKU code.
func (c *UnicommerceClient) FetchProduct(ctx context.Context, externalCode string) (*clients.ExternalProduct, error) {
	payload := map[string]interface{}{"skuCode": externalCode}
	body, err := c.doRequest(ctx, "POST", "/services/rest/v1/catalog/itemType/get", nil, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		ItemTypeDTO struct {
			SkuCode string `json:"skuCode"`
			Name    string `json:"name"`
		} `json:"itemTypeDTO"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse item response: %v", err))
	}

	return &clients.ExternalProduct{
		Code:  response.ItemTypeDTO.SkuCode,
		SKU:   response.ItemTypeDTO.SkuCode,
		Title: response.ItemTypeDTO.Name,
	}, nil
}

// PushInventory adjusts inventory in one bulk call; the response carries a
// per-SKU status list.
func (c *UnicommerceClient) PushInventory(ctx context.Context, updates []clients.InventoryUpdate) (map[string]clients.PushResult, error) {
	adjustments := make([]map[string]interface{}, 0, len(updates))
	for _, update := range updates {
		adjustments = append(adjustments, map[string]interface{}{
			"itemSKU":        update.SKU,
			"quantity":       update.Quantity,
			"shelfCode":      "DEFAULT",
			"inventoryType":  "GOOD_INVENTORY",
			"adjustmentType": "REPLACE",
			"facilityCode":   c.facility,
		})
	}
	payload := map[string]interface{}{"inventoryAdjustments": adjustments}

	body, err := c.doRequest(ctx, "POST", "/services/rest/v1/inventory/adjust/bulk", nil, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		Responses []struct {
			ItemSKU    string `json:"itemSKU"`
			Successful bool   `json:"successful"`
			Errors     []struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"errors,omitempty"`
		} `json:"inventoryAdjustmentResponses"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse adjustment response: %v", err))
	}

	results := make(map[string]clients.PushResult, len(updates))
	for _, r := range response.Responses {
		if r.Successful {
			results[r.ItemSKU] = clients.PushResult{Status: clients.PushSuccess}
			continue
		}
		message := ""
		notFound := false
		for _, e := range r.Errors {
			message = e.Description
			if e.Code == "SKU_NOT_FOUND" {
				notFound = true
			}
		}
		if notFound {
			results[r.ItemSKU] = clients.PushResult{Status: clients.PushNotFound, Message: message}
		} else {
			results[r.ItemSKU] = clients.PushResult{Status: clients.PushFailed, Message: message}
		}
	}

	// SKUs missing from the response are treated as failed so they stay
	// stale and retry next cycle.
	for _, update := range updates {
		if _, ok := results[update.SKU]; !ok {
			results[update.SKU] = clients.PushResult{Status: clients.PushFailed, Message: "no result in response"}
		}
	}

	return results, nil
}

// VerifyWebhook checks a hex HMAC-SHA256 signature over the raw body.
func (c *UnicommerceClient) VerifyWebhook(payload []byte, signature string, secret string) error {
	if secret == "" {
		return clients.NewAuthenticationError("no webhook secret configured")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return clients.NewAuthenticationError("invalid webhook signature")
	}
	return nil
}

// ParseWebhook parses a Unicommerce webhook payload.
func (c *UnicommerceClient) ParseWebhook(payload []byte) (*clients.WebhookEvent, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("invalid webhook payload: %v", err))
	}

	eventType, _ := event["eventType"].(string)
	resourceCode, _ := event["saleOrderCode"].(string)

	return &clients.WebhookEvent{
		EventID:      fmt.Sprintf("%v", event["eventId"]),
		EventType:    eventType,
		ResourceCode: resourceCode,
		Payload:      event,
		Timestamp:    time.Now(),
	}, nil
}

// doRequest performs an authenticated request, refreshing the token when it
// is within 5 minutes of expiry.
func (c *UnicommerceClient) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	if time.Now().After(c.tokenExpiry.Add(-5 * time.Minute)) {
		if _, err := c.RefreshToken(ctx); err != nil {
			return nil, err
		}
	}

	fullURL := c.baseURL + path
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if c.facility != "" {
		req.Header.Set("Facility", c.facility)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, clients.NewTransientError("NETWORK", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clients.NewTransientError("NETWORK", err.Error())
	}

	if resp.StatusCode >= 400 {
		return nil, clients.ClassifyStatus(resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func convertUniOrder(o uniOrder) clients.ExternalOrder {
	code := o.Code
	if code == "" {
		code = o.DisplayCode
	}
	order := clients.ExternalOrder{
		Code:      code,
		Status:    o.Status,
		Currency:  o.Currency,
		CreatedAt: time.UnixMilli(o.Created),
		UpdatedAt: time.UnixMilli(o.Updated),
	}
	order.TotalAmount = o.Total

	if o.Status == "CANCELLED" {
		cancelledAt := time.UnixMilli(o.Updated)
		order.CancelledAt = &cancelledAt
	}

	for _, item := range o.Items {
		order.LineItems = append(order.LineItems, clients.ExternalLineItem{
			LineID:    item.Code,
			SKU:       item.ItemSKU,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.SellingPrice,
			Cancelled: item.StatusCode == "CANCELLED" || o.Status == "CANCELLED",
		})
	}

	if o.CustomerName != "" || o.CustomerEmail != "" {
		order.Customer = &clients.ExternalCustomer{
			ExternalID: code,
			Name:       o.CustomerName,
			Email:      o.CustomerEmail,
		}
	}
	if o.Address != nil {
		order.Address = &clients.ExternalAddress{
			Address1:   o.Address.AddressLine1,
			Address2:   o.Address.AddressLine2,
			City:       o.Address.City,
			State:      o.Address.State,
			PostalCode: o.Address.Pincode,
			Country:    o.Address.Country,
		}
	}

	return order
}
