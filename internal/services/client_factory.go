package services

import (
	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/clients/amazon"
	"erp-sync-service/internal/clients/shopify"
	"erp-sync-service/internal/clients/unicommerce"
	"erp-sync-service/internal/models"
)

// NewPlatformClient returns a fresh client for a platform type. Clients are
// per-sync-run: credentials and token state are loaded in Initialize.
func NewPlatformClient(platform models.PlatformType) (clients.PlatformClient, error) {
	switch platform {
	case models.PlatformAmazon:
		return amazon.NewAmazonClient(), nil
	case models.PlatformShopify:
		return shopify.NewShopifyClient(), nil
	case models.PlatformUnicommerce:
		return unicommerce.NewUnicommerceClient(), nil
	default:
		return nil, &clients.UnsupportedPlatformError{PlatformType: string(platform)}
	}
}
