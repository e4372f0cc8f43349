package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// IntegrationSecret is the credential payload stored in GCP for one
// integration connection.
type IntegrationSecret struct {
	Platform      string                 `json:"platform"`
	Credentials   map[string]interface{} `json:"credentials"`
	WebhookSecret string                 `json:"webhook_secret,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// cacheEntry represents a cached secret with expiration
type cacheEntry struct {
	secret    *IntegrationSecret
	expiresAt time.Time
}

// GCPSecretManager manages integration credentials in Google Cloud Secret
// Manager, with a short read cache to avoid hammering the API on every sync
// cycle.
type GCPSecretManager struct {
	client    *secretmanager.Client
	projectID string
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// NewGCPSecretManager creates a new GCP Secret Manager client
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
	}, nil
}

// Close closes the Secret Manager client
func (sm *GCPSecretManager) Close() error {
	if sm.client != nil {
		return sm.client.Close()
	}
	return nil
}

// BuildSecretName constructs the secret name for an integration.
// Format: projects/{project}/secrets/erp-sync-{integration_id}
func (sm *GCPSecretManager) BuildSecretName(integrationID string) string {
	return fmt.Sprintf("projects/%s/secrets/erp-sync-%s", sm.projectID, sanitizeSecretID(integrationID))
}

// GetSecret retrieves a secret from GCP Secret Manager
func (sm *GCPSecretManager) GetSecret(ctx context.Context, secretName string) (*IntegrationSecret, error) {
	sm.cacheMu.RLock()
	if entry, ok := sm.cache[secretName]; ok && time.Now().Before(entry.expiresAt) {
		sm.cacheMu.RUnlock()
		return entry.secret, nil
	}
	sm.cacheMu.RUnlock()

	accessRequest := &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName + "/versions/latest",
	}

	result, err := sm.client.AccessSecretVersion(ctx, accessRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret: %w", err)
	}

	var secret IntegrationSecret
	if err := json.Unmarshal(result.Payload.Data, &secret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}

	sm.cacheMu.Lock()
	sm.cache[secretName] = &cacheEntry{
		secret:    &secret,
		expiresAt: time.Now().Add(sm.cacheTTL),
	}
	sm.cacheMu.Unlock()

	return &secret, nil
}

// CreateOrUpdateSecret creates or updates a secret in GCP Secret Manager
func (sm *GCPSecretManager) CreateOrUpdateSecret(ctx context.Context, secretName string, secret *IntegrationSecret) error {
	secret.UpdatedAt = time.Now()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now()
	}

	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("failed to marshal secret: %w", err)
	}

	secretID := extractSecretID(secretName)

	createRequest := &secretmanagerpb.CreateSecretRequest{
		Parent:   fmt.Sprintf("projects/%s", sm.projectID),
		SecretId: secretID,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	}

	_, err = sm.client.CreateSecret(ctx, createRequest)
	if err != nil && !isAlreadyExistsError(err) {
		return fmt.Errorf("failed to create secret: %w", err)
	}

	addVersionRequest := &secretmanagerpb.AddSecretVersionRequest{
		Parent: secretName,
		Payload: &secretmanagerpb.SecretPayload{
			Data: data,
		},
	}

	_, err = sm.client.AddSecretVersion(ctx, addVersionRequest)
	if err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}

	sm.cacheMu.Lock()
	delete(sm.cache, secretName)
	sm.cacheMu.Unlock()

	return nil
}

// DeleteSecret deletes a secret from GCP Secret Manager
func (sm *GCPSecretManager) DeleteSecret(ctx context.Context, secretName string) error {
	deleteRequest := &secretmanagerpb.DeleteSecretRequest{
		Name: secretName,
	}

	if err := sm.client.DeleteSecret(ctx, deleteRequest); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	sm.cacheMu.Lock()
	delete(sm.cache, secretName)
	sm.cacheMu.Unlock()

	return nil
}

// InvalidateCache removes a secret from the cache
func (sm *GCPSecretManager) InvalidateCache(secretName string) {
	sm.cacheMu.Lock()
	delete(sm.cache, secretName)
	sm.cacheMu.Unlock()
}

// sanitizeSecretID removes or replaces invalid characters for GCP secret IDs
// Secret IDs can only contain alphanumeric characters, hyphens, and underscores
func sanitizeSecretID(input string) string {
	var result strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}

// extractSecretID extracts the secret ID from the full secret name
func extractSecretID(secretName string) string {
	parts := strings.Split(secretName, "/")
	if len(parts) >= 4 {
		return parts[3]
	}
	return secretName
}

// isAlreadyExistsError checks if the error indicates the resource already exists
func isAlreadyExistsError(err error) bool {
	return strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already exists")
}
