package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"erp-sync-service/internal/secrets"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CredentialSource fetches credential payloads referenced by an integration.
// GCPSecretManager satisfies it; a nil source limits integrations to inline
// credentials.
type CredentialSource interface {
	GetSecret(ctx context.Context, secretName string) (*secrets.IntegrationSecret, error)
}

// SyncService owns the scheduled entry points: order pull, inventory push
// and status refresh. Every outbound platform call runs through a retrying
// Caller bounded by the integration's budget; exhaustion trips the circuit
// breaker and disables the integration until an operator re-enables it.
type SyncService struct {
	integrations IntegrationStore
	orders       OrderStore
	runs         RunStore
	orderSync    *OrderSyncService
	reconciler   *InventoryReconciler
	credentials  CredentialSource
	newClient    func(models.PlatformType) (clients.PlatformClient, error)
	policy       clients.CallPolicy
	logger       *zap.Logger
}

// NewSyncService creates the sync service.
func NewSyncService(
	integrations IntegrationStore,
	orders OrderStore,
	runs RunStore,
	orderSync *OrderSyncService,
	reconciler *InventoryReconciler,
	credentials CredentialSource,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		integrations: integrations,
		orders:       orders,
		runs:         runs,
		orderSync:    orderSync,
		reconciler:   reconciler,
		credentials:  credentials,
		newClient:    NewPlatformClient,
		policy:       clients.DefaultCallPolicy(),
		logger:       logger,
	}
}

// SyncNewOrders pulls new orders from the platform page by page and imports
// each one. A failure inside one order is logged on the run and the loop
// continues; a retry-exhausted platform call disables the integration.
func (s *SyncService) SyncNewOrders(ctx context.Context, integrationID uuid.UUID, trigger models.TriggerType) (*models.SyncRun, error) {
	integration, client, run, err := s.prepare(ctx, integrationID, models.JobSyncNewOrders, trigger)
	if err != nil {
		return nil, err
	}

	caller := clients.NewCaller(s.policy.WithAttempts(integration.RetryBudget()))

	stream := clients.NewPageStream(func(ctx context.Context, cursor string) ([]clients.ExternalOrder, string, error) {
		var page *clients.OrdersPage
		err := caller.Call(ctx, "FetchOrders", func(ctx context.Context) error {
			var cerr error
			page, cerr = client.FetchOrders(ctx, &clients.OrderListOptions{Cursor: cursor})
			return cerr
		})
		if err != nil {
			return nil, "", err
		}
		return page.Orders, page.NextCursor, nil
	})

	streamErr := stream.Each(ctx, func(orders []clients.ExternalOrder) error {
		for i := range orders {
			s.importOne(ctx, integration, client, run, &orders[i])
		}
		return nil
	})

	if streamErr != nil {
		if derr := s.handleExhaustion(ctx, integration, run, streamErr); derr != nil {
			return run, derr
		}
		_ = s.runs.Complete(ctx, run, models.SyncRunFailed, streamErr.Error())
		return run, streamErr
	}

	err = s.runs.Complete(ctx, run, models.SyncRunCompleted, "")
	return run, err
}

// importOne imports a single order, isolating its failure from the batch.
func (s *SyncService) importOne(ctx context.Context, integration *models.IntegrationConnection, client clients.PlatformClient, run *models.SyncRun, ext *clients.ExternalOrder) {
	run.TotalItems++

	outcome, err := s.orderSync.ImportOrder(ctx, integration, client, ext)
	if err != nil {
		var incomplete *IncompleteSourceDataError
		var unresolved *UnresolvedItemError
		switch {
		case errors.As(err, &incomplete):
			run.SkippedItems++
			_ = s.runs.AppendLog(ctx, run.ID, models.LogLevelWarn, "order skipped: incomplete source data",
				models.JSONB{"externalCode": ext.Code, "missing": incomplete.Missing})
		case errors.As(err, &unresolved):
			run.FailedItems++
			_ = s.runs.AppendLog(ctx, run.ID, models.LogLevelError, "order aborted: unresolved item",
				models.JSONB{"externalCode": ext.Code, "sku": unresolved.SKU, "error": unresolved.Cause.Error()})
		default:
			run.FailedItems++
			_ = s.runs.AppendLog(ctx, run.ID, models.LogLevelError, "order import failed",
				models.JSONB{"externalCode": ext.Code, "error": err.Error()})
		}
		s.logger.Warn("order import failed",
			zap.String("externalCode", ext.Code),
			zap.Error(err))
	} else {
		switch outcome {
		case ImportSkipped:
			run.SkippedItems++
		default:
			run.SuccessfulItems++
		}
	}

	_ = s.runs.Update(ctx, run)
}

// UpdateInventory computes stale stock deltas and pushes them in batches.
func (s *SyncService) UpdateInventory(ctx context.Context, integrationID uuid.UUID, trigger models.TriggerType) (*models.SyncRun, error) {
	integration, client, run, err := s.prepare(ctx, integrationID, models.JobUpdateInventory, trigger)
	if err != nil {
		return nil, err
	}

	deltas, err := s.reconciler.ComputeDeltas(ctx, integration)
	if err != nil {
		_ = s.runs.Complete(ctx, run, models.SyncRunFailed, err.Error())
		return run, err
	}
	run.TotalItems = len(deltas)
	_ = s.runs.Update(ctx, run)

	if len(deltas) == 0 {
		err = s.runs.Complete(ctx, run, models.SyncRunCompleted, "")
		return run, err
	}

	caller := clients.NewCaller(s.policy.WithAttempts(integration.RetryBudget()))

	var outcome *PushOutcome
	pushErr := caller.Call(ctx, "PushInventory", func(ctx context.Context) error {
		var perr error
		outcome, perr = s.reconciler.Push(ctx, client, deltas)
		return perr
	})
	if outcome != nil {
		run.SuccessfulItems = outcome.Pushed
		run.SkippedItems = outcome.NotFound
		run.FailedItems = outcome.Failed
	}

	if pushErr != nil {
		if derr := s.handleExhaustion(ctx, integration, run, pushErr); derr != nil {
			return run, derr
		}
		_ = s.runs.Complete(ctx, run, models.SyncRunFailed, pushErr.Error())
		return run, pushErr
	}

	err = s.runs.Complete(ctx, run, models.SyncRunCompleted, "")
	return run, err
}

// UpdateOrderStatus refreshes every open order against the platform and
// reconciles status and cancellations.
func (s *SyncService) UpdateOrderStatus(ctx context.Context, integrationID uuid.UUID, trigger models.TriggerType) (*models.SyncRun, error) {
	integration, client, run, err := s.prepare(ctx, integrationID, models.JobUpdateOrderStatus, trigger)
	if err != nil {
		return nil, err
	}

	open, err := s.orders.ListOpenOrders(ctx, integrationID)
	if err != nil {
		_ = s.runs.Complete(ctx, run, models.SyncRunFailed, err.Error())
		return run, err
	}
	run.TotalItems = len(open)
	_ = s.runs.Update(ctx, run)

	caller := clients.NewCaller(s.policy.WithAttempts(integration.RetryBudget()))

	for i := range open {
		var ext *clients.ExternalOrder
		fetchErr := caller.Call(ctx, "FetchOrder", func(ctx context.Context) error {
			var cerr error
			ext, cerr = client.FetchOrder(ctx, open[i].ExternalCode)
			return cerr
		})
		if fetchErr != nil {
			if derr := s.handleExhaustion(ctx, integration, run, fetchErr); derr != nil {
				return run, derr
			}
			run.FailedItems++
			_ = s.runs.AppendLog(ctx, run.ID, models.LogLevelError, "status fetch failed",
				models.JSONB{"externalCode": open[i].ExternalCode, "error": fetchErr.Error()})
			continue
		}

		s.importOne(ctx, integration, client, run, ext)
	}

	err = s.runs.Complete(ctx, run, models.SyncRunCompleted, "")
	return run, err
}

// TestConnection initializes a client for the integration and performs a
// cheap live call.
func (s *SyncService) TestConnection(ctx context.Context, integrationID uuid.UUID) error {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return err
	}
	client, err := s.initClient(ctx, integration)
	if err != nil {
		return err
	}
	return client.TestConnection(ctx)
}

// RefreshCredentials forces a token refresh and persists the new material so
// the next run starts from a fresh token.
func (s *SyncService) RefreshCredentials(ctx context.Context, integrationID uuid.UUID) error {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return err
	}
	client, err := s.initClient(ctx, integration)
	if err != nil {
		return err
	}

	token, err := client.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if token == nil {
		return nil
	}

	creds := models.JSONB{}
	for k, v := range integration.Credentials {
		creds[k] = v
	}
	creds["access_token"] = token.AccessToken
	if token.RefreshToken != "" {
		creds["refresh_token"] = token.RefreshToken
	}
	creds["token_expires_at"] = token.ExpiresAt.Format(time.RFC3339)

	return s.integrations.UpdateCredentials(ctx, integrationID, creds)
}

// ClientFor builds an initialized client for an integration. Used by the
// webhook pipeline, which verifies and parses payloads through the client.
func (s *SyncService) ClientFor(ctx context.Context, integration *models.IntegrationConnection) (clients.PlatformClient, error) {
	return s.initClient(ctx, integration)
}

// prepare loads the integration, refuses disabled ones, initializes a client
// and opens a run record.
func (s *SyncService) prepare(ctx context.Context, integrationID uuid.UUID, jobKey string, trigger models.TriggerType) (*models.IntegrationConnection, clients.PlatformClient, *models.SyncRun, error) {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !integration.SyncEnabled {
		return nil, nil, nil, ErrSyncDisabled
	}

	client, err := s.initClient(ctx, integration)
	if err != nil {
		return nil, nil, nil, err
	}

	run := &models.SyncRun{
		IntegrationID: integrationID,
		JobKey:        jobKey,
		Status:        models.SyncRunRunning,
		TriggeredBy:   trigger,
		StartedAt:     time.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, nil, nil, err
	}

	return integration, client, run, nil
}

func (s *SyncService) initClient(ctx context.Context, integration *models.IntegrationConnection) (clients.PlatformClient, error) {
	client, err := s.newClient(integration.PlatformType)
	if err != nil {
		return nil, err
	}

	credentials, err := s.loadCredentials(ctx, integration)
	if err != nil {
		return nil, err
	}

	if err := client.Initialize(ctx, integration.Endpoint, credentials); err != nil {
		return nil, err
	}
	return client, nil
}

// loadCredentials resolves credential material from Secret Manager when the
// integration carries a reference, otherwise from the inline JSONB column.
func (s *SyncService) loadCredentials(ctx context.Context, integration *models.IntegrationConnection) (map[string]interface{}, error) {
	if integration.SecretReference != "" {
		if s.credentials == nil {
			return nil, fmt.Errorf("integration %s references a secret but no credential source is configured", integration.ID)
		}
		secret, err := s.credentials.GetSecret(ctx, integration.SecretReference)
		if err != nil {
			return nil, err
		}
		return secret.Credentials, nil
	}
	return map[string]interface{}(integration.Credentials), nil
}

// handleExhaustion trips the circuit breaker when err is a retry-exhausted
// failure: the integration is disabled with a last-writer-wins update and
// ErrSyncDisabled is returned. Other errors return nil so the caller keeps
// its own error.
func (s *SyncService) handleExhaustion(ctx context.Context, integration *models.IntegrationConnection, run *models.SyncRun, err error) error {
	var exhausted *clients.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		return nil
	}

	message := exhausted.Error()
	s.logger.Warn("retries exhausted, disabling integration",
		zap.String("integration", integration.ID.String()),
		zap.String("operation", exhausted.Operation),
		zap.Int("attempts", exhausted.Attempts))

	if derr := s.integrations.SetSyncEnabled(ctx, integration.ID, false, message); derr != nil {
		s.logger.Error("failed to disable integration", zap.Error(derr))
	}
	_ = s.integrations.RecordError(ctx, integration.ID, message)

	if run != nil {
		_ = s.runs.AppendLog(ctx, run.ID, models.LogLevelError, "integration disabled after exhausted retries",
			models.JSONB{"operation": exhausted.Operation, "attempts": exhausted.Attempts, "error": message})
		_ = s.runs.Complete(ctx, run, models.SyncRunFailed, message)
	}

	return fmt.Errorf("%w: %s", ErrSyncDisabled, message)
}
