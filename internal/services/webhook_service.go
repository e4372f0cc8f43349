package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"erp-sync-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidSignature rejects a webhook whose HMAC does not match. Handlers
// translate it to a 401; the payload is never parsed or stored.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// WebhookService verifies, deduplicates and processes inbound platform
// events. Redeliveries are detected by idempotency key and acknowledged
// without reprocessing.
type WebhookService struct {
	integrations IntegrationStore
	webhooks     WebhookStore
	orderSync    *OrderSyncService
	sync         *SyncService
	logger       *zap.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(integrations IntegrationStore, webhooks WebhookStore, orderSync *OrderSyncService, sync *SyncService, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		integrations: integrations,
		webhooks:     webhooks,
		orderSync:    orderSync,
		sync:         sync,
		logger:       logger,
	}
}

// Ingest handles one raw webhook delivery: verify the signature, store the
// event exactly once, then process it. A duplicate delivery is a success.
func (s *WebhookService) Ingest(ctx context.Context, integrationID uuid.UUID, payload []byte, signature string) error {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return err
	}

	client, err := s.sync.ClientFor(ctx, integration)
	if err != nil {
		return err
	}

	if err := client.VerifyWebhook(payload, signature, integration.WebhookSecret); err != nil {
		s.logger.Warn("webhook rejected",
			zap.String("integration", integrationID.String()),
			zap.Error(err))
		return ErrInvalidSignature
	}

	parsed, err := client.ParseWebhook(payload)
	if err != nil {
		return err
	}

	event := &models.WebhookEvent{
		IntegrationID:  integrationID,
		PlatformType:   integration.PlatformType,
		EventID:        parsed.EventID,
		EventType:      parsed.EventType,
		Payload:        models.JSONB(parsed.Payload),
		IdempotencyKey: idempotencyKey(integration, parsed, payload),
	}

	if err := s.webhooks.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			s.logger.Info("webhook already processed, skipped",
				zap.String("eventId", parsed.EventID))
			return nil
		}
		return err
	}

	if err := s.process(ctx, integration, client, parsed); err != nil {
		_ = s.webhooks.MarkFailed(ctx, event.ID, err.Error())
		return err
	}

	return s.webhooks.MarkProcessed(ctx, event.ID)
}

// process routes a verified event. Order events refresh the referenced order
// from the platform so the import sees authoritative state rather than the
// webhook's possibly stale snapshot.
func (s *WebhookService) process(ctx context.Context, integration *models.IntegrationConnection, client clients.PlatformClient, event *clients.WebhookEvent) error {
	if event.ResourceCode == "" {
		s.logger.Debug("webhook carries no resource reference, stored only",
			zap.String("eventType", event.EventType))
		return nil
	}

	ext, err := client.FetchOrder(ctx, event.ResourceCode)
	if err != nil {
		return err
	}

	_, err = s.orderSync.ImportOrder(ctx, integration, client, ext)
	return err
}

// idempotencyKey derives a stable dedup key. Platforms that report an event
// ID use it directly; otherwise the payload hash stands in.
func idempotencyKey(integration *models.IntegrationConnection, event *clients.WebhookEvent, payload []byte) string {
	if event.EventID != "" && event.EventID != "<nil>" {
		return fmt.Sprintf("%s:%s", integration.ID, event.EventID)
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%s", integration.ID, hex.EncodeToString(sum[:]))
}
