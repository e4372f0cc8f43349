package amazon

import (
	"bytes"
	"context"
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
	// SP-API regional endpoints
	naEndpoint = "https://sellingpartnerapi-na.amazon.com"
	euEndpoint = "https://sellingpartnerapi-eu.amazon.com"
	feEndpoint = "https://sellingpartnerapi-fe.amazon.com"

	// LWA token endpoint
	lwaTokenEndpoint = "https://api.amazon.com/auth/o2/token"
)

// AmazonClient implements PlatformClient for the Amazon Selling Partner API.
// Requests carry both an LWA access token and a SigV4 signature.
type AmazonClient struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	clientSecret  string
	refreshToken  string
	accessToken   string
	tokenExpiry   time.Time
	sellerID      string
	marketplaceID string
	signer        *Signer
	rateLimiter   *rate.Limiter
}

// NewAmazonClient creates a new SP-API client.
func NewAmazonClient() *AmazonClient {
	return &AmazonClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(5), 1), // 5 requests per second
	}
}

// Platform returns the platform type.
func (c *AmazonClient) Platform() models.PlatformType {
	return models.PlatformAmazon
}

// Initialize sets up the client with credentials.
func (c *AmazonClient) Initialize(ctx context.Context, endpoint string, credentials map[string]interface{}) error {
	required := func(key string) (string, error) {
		if v, ok := credentials[key].(string); ok && v != "" {
			return v, nil
		}
		return "", clients.NewAuthenticationError("missing " + key)
	}

	var err error
	if c.clientID, err = required("client_id"); err != nil {
		return err
	}
	if c.clientSecret, err = required("client_secret"); err != nil {
		return err
	}
	if c.refreshToken, err = required("refresh_token"); err != nil {
		return err
	}
	if c.sellerID, err = required("seller_id"); err != nil {
		return err
	}
	if c.marketplaceID, err = required("marketplace_id"); err != nil {
		return err
	}

	region := "us-east-1"
	if r, ok := credentials["region"].(string); ok && r != "" {
		region = r
	}
	if endpoint != "" {
		c.baseURL = endpoint
	} else {
		c.baseURL = regionalEndpoint(region)
	}

	accessKey, _ := credentials["access_key_id"].(string)
	secretKey, _ := credentials["secret_access_key"].(string)
	if accessKey != "" && secretKey != "" {
		c.signer = &Signer{AccessKeyID: accessKey, SecretAccessKey: secretKey, Region: region}
	}

	if accessToken, ok := credentials["access_token"].(string); ok && accessToken != "" {
		c.accessToken = accessToken
		if expiresAt, ok := credentials["token_expires_at"].(string); ok {
			c.tokenExpiry, _ = time.Parse(time.RFC3339, expiresAt)
		}
	}

	if c.accessToken == "" || time.Now().After(c.tokenExpiry.Add(-5*time.Minute)) {
		if _, err := c.RefreshToken(ctx); err != nil {
			return err
		}
	}

	return nil
}

// TestConnection verifies the credentials with a marketplace participation
// lookup.
func (c *AmazonClient) TestConnection(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/sellers/v1/marketplaceParticipations", nil, nil)
	return err
}

// RefreshToken refreshes the LWA access token.
func (c *AmazonClient) RefreshToken(ctx context.Context) (*clients.TokenResult, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", c.refreshToken)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", lwaTokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, clients.NewTransientError("NETWORK", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, clients.NewAuthenticationError(fmt.Sprintf("token refresh failed: %s", string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return &clients.TokenResult{
		AccessToken:  tokenResp.AccessToken,
		ExpiresAt:    c.tokenExpiry,
		RefreshToken: c.refreshToken, // Amazon doesn't rotate refresh tokens
	}, nil
}

type amazonOrder struct {
	AmazonOrderID string    `json:"AmazonOrderId"`
	PurchaseDate  time.Time `json:"PurchaseDate"`
	LastUpdate    time.Time `json:"LastUpdateDate"`
	OrderStatus   string    `json:"OrderStatus"`
	OrderTotal    struct {
		Amount       string `json:"Amount"`
		CurrencyCode string `json:"CurrencyCode"`
	} `json:"OrderTotal,omitempty"`
	BuyerInfo struct {
		BuyerEmail string `json:"BuyerEmail,omitempty"`
		BuyerName  string `json:"BuyerName,omitempty"`
	} `json:"BuyerInfo,omitempty"`
	ShippingAddress struct {
		Name          string `json:"Name"`
		AddressLine1  string `json:"AddressLine1"`
		AddressLine2  string `json:"AddressLine2,omitempty"`
		City          string `json:"City"`
		StateOrRegion string `json:"StateOrRegion"`
		PostalCode    string `json:"PostalCode"`
		CountryCode   string `json:"CountryCode"`
	} `json:"ShippingAddress,omitempty"`
}

// FetchOrders fetches one page of orders; the cursor is Amazon's NextToken.
func (c *AmazonClient) FetchOrders(ctx context.Context, opts *clients.OrderListOptions) (*clients.OrdersPage, error) {
	params := url.Values{}
	params.Set("MarketplaceIds", c.marketplaceID)

	if opts.Cursor != "" {
		params.Set("NextToken", opts.Cursor)
	} else {
		if !opts.CreatedAfter.IsZero() {
			params.Set("CreatedAfter", opts.CreatedAfter.Format(time.RFC3339))
		}
		if !opts.UpdatedAfter.IsZero() {
			params.Set("LastUpdatedAfter", opts.UpdatedAfter.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("MaxResultsPerPage", strconv.Itoa(opts.Limit))
		}
	}

	body, err := c.doRequest(ctx, "GET", "/orders/v0/orders", params, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Payload struct {
			Orders    []amazonOrder `json:"Orders"`
			NextToken string        `json:"NextToken,omitempty"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse orders response: %v", err))
	}

	orders := make([]clients.ExternalOrder, 0, len(response.Payload.Orders))
	for _, o := range response.Payload.Orders {
		order := convertAmazonOrder(o)

		// Order line items come from a separate endpoint.
		lines, err := c.fetchOrderItems(ctx, o.AmazonOrderID, o.OrderStatus)
		if err != nil {
			return nil, err
		}
		order.LineItems = lines

		orders = append(orders, order)
	}

	return &clients.OrdersPage{
		Orders:     orders,
		NextCursor: response.Payload.NextToken,
		HasMore:    response.Payload.NextToken != "",
	}, nil
}

// FetchOrder fetches a single order with its line items.
func (c *AmazonClient) FetchOrder(ctx context.Context, externalCode string) (*clients.ExternalOrder, error) {
	body, err := c.doRequest(ctx, "GET", "/orders/v0/orders/"+externalCode, nil, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Payload amazonOrder `json:"payload"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse order response: %v", err))
	}

	order := convertAmazonOrder(response.Payload)
	lines, err := c.fetchOrderItems(ctx, externalCode, response.Payload.OrderStatus)
	if err != nil {
		return nil, err
	}
	order.LineItems = lines

	return &order, nil
}

func (c *AmazonClient) fetchOrderItems(ctx context.Context, orderID, orderStatus string) ([]clients.ExternalLineItem, error) {
	body, err := c.doRequest(ctx, "GET", fmt.Sprintf("/orders/v0/orders/%s/orderItems", orderID), nil, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Payload struct {
			OrderItems []struct {
				OrderItemID     string `json:"OrderItemId"`
				SellerSKU       string `json:"SellerSKU"`
				ASIN            string `json:"ASIN"`
				Title           string `json:"Title"`
				QuantityOrdered int    `json:"QuantityOrdered"`
				ItemPrice       struct {
					Amount string `json:"Amount"`
				} `json:"ItemPrice,omitempty"`
			} `json:"OrderItems"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse order items: %v", err))
	}

	cancelled := orderStatus == "Canceled"
	lines := make([]clients.ExternalLineItem, 0, len(response.Payload.OrderItems))
	for _, item := range response.Payload.OrderItems {
		line := clients.ExternalLineItem{
			LineID:    item.OrderItemID,
			SKU:       item.SellerSKU,
			VariantID: item.ASIN,
			Title:     item.Title,
			Quantity:  float64(item.QuantityOrdered),
			Cancelled: cancelled || item.QuantityOrdered == 0,
		}
		if item.ItemPrice.Amount != "" {
			line.UnitPrice, _ = strconv.ParseFloat(item.ItemPrice.Amount, 64)
		}
		lines = append(lines, line)
	}

	return lines, nil
}

// FetchProduct fetches a catalog item by ASIN.
func (c *AmazonClient) FetchProduct(ctx context.Context, externalCode string) (*clients.ExternalProduct, error) {
	params := url.Values{}
	params.Set("marketplaceIds", c.marketplaceID)
	params.Set("includedData", "summaries,identifiers")

	body, err := c.doRequest(ctx, "GET", "/catalog/2022-04-01/items/"+externalCode, params, nil)
	if err != nil {
		return nil, err
	}

	var item struct {
		ASIN      string `json:"asin"`
		Summaries []struct {
			MarketplaceID string `json:"marketplaceId"`
			ItemName      string `json:"itemName"`
		} `json:"summaries,omitempty"`
	}
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("failed to parse catalog item: %v", err))
	}

	product := &clients.ExternalProduct{Code: item.ASIN}
	for _, summary := range item.Summaries {
		if summary.MarketplaceID == c.marketplaceID {
			product.Title = summary.ItemName
			break
		}
	}

	return product, nil
}

// PushInventory patches listing quantities per SKU through the Listings API.
func (c *AmazonClient) PushInventory(ctx context.Context, updates []clients.InventoryUpdate) (map[string]clients.PushResult, error) {
	results := make(map[string]clients.PushResult, len(updates))

	for _, update := range updates {
		params := url.Values{}
		params.Set("marketplaceIds", c.marketplaceID)

		payload := map[string]interface{}{
			"productType": "PRODUCT",
			"patches": []map[string]interface{}{
				{
					"op":   "replace",
					"path": "/attributes/fulfillment_availability",
					"value": []map[string]interface{}{
						{"fulfillment_channel_code": "DEFAULT", "quantity": update.Quantity},
					},
				},
			},
		}

		path := fmt.Sprintf("/listings/2021-08-01/items/%s/%s", c.sellerID, url.PathEscape(update.SKU))
		_, err := c.doRequest(ctx, "PATCH", path, params, payload)
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

// VerifyWebhook - Amazon notifications arrive via SQS/SNS with their own
// delivery guarantees, so there is no shared-secret signature to check.
func (c *AmazonClient) VerifyWebhook(payload []byte, signature string, secret string) error {
	return nil
}

// ParseWebhook parses an Amazon notification payload.
func (c *AmazonClient) ParseWebhook(payload []byte) (*clients.WebhookEvent, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, clients.NewRequestError("PARSE", fmt.Sprintf("invalid notification payload: %v", err))
	}

	notificationType, _ := event["NotificationType"].(string)
	eventTime, _ := event["EventTime"].(string)
	timestamp, _ := time.Parse(time.RFC3339, eventTime)

	return &clients.WebhookEvent{
		EventID:   fmt.Sprintf("%v", event["NotificationId"]),
		EventType: notificationType,
		Payload:   event,
		Timestamp: timestamp,
	}, nil
}

// doRequest performs an authenticated, signed request against the SP-API.
func (c *AmazonClient) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
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

	payloadHash := EmptyPayloadHash
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payloadHash = hashHex(data)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("x-amz-access-token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		c.signer.Sign(req, payloadHash, time.Now())
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

func regionalEndpoint(region string) string {
	switch {
	case strings.HasPrefix(region, "eu"):
		return euEndpoint
	case strings.HasPrefix(region, "ap") || strings.HasPrefix(region, "us-west"):
		return feEndpoint
	default:
		return naEndpoint
	}
}

func convertAmazonOrder(o amazonOrder) clients.ExternalOrder {
	order := clients.ExternalOrder{
		Code:      o.AmazonOrderID,
		Status:    o.OrderStatus,
		Currency:  o.OrderTotal.CurrencyCode,
		CreatedAt: o.PurchaseDate,
		UpdatedAt: o.LastUpdate,
	}
	if o.OrderTotal.Amount != "" {
		order.TotalAmount, _ = strconv.ParseFloat(o.OrderTotal.Amount, 64)
	}
	if o.OrderStatus == "Canceled" {
		cancelledAt := o.LastUpdate
		if cancelledAt.IsZero() {
			cancelledAt = o.PurchaseDate
		}
		order.CancelledAt = &cancelledAt
	}

	if o.BuyerInfo.BuyerName != "" || o.BuyerInfo.BuyerEmail != "" {
		order.Customer = &clients.ExternalCustomer{
			ExternalID: o.AmazonOrderID,
			Name:       o.BuyerInfo.BuyerName,
			Email:      o.BuyerInfo.BuyerEmail,
		}
	}
	if o.ShippingAddress.AddressLine1 != "" {
		order.Address = &clients.ExternalAddress{
			Address1:   o.ShippingAddress.AddressLine1,
			Address2:   o.ShippingAddress.AddressLine2,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.StateOrRegion,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.CountryCode,
		}
		if order.Customer == nil && o.ShippingAddress.Name != "" {
			order.Customer = &clients.ExternalCustomer{ExternalID: o.AmazonOrderID, Name: o.ShippingAddress.Name}
		}
	}

	return order
}
