package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ERP sync service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// GCP
	GCPProjectID string

	// Sync Settings
	SyncBatchSize    int
	SyncMaxRetries   int
	SyncRetryDelay   time.Duration
	SyncTimeout      time.Duration
	InventoryBatch   int
	SchedulerEnabled bool
	SchedulerTick    time.Duration

	// Rate Limiting
	DefaultRateLimit int // requests per second

	// Webhook Base URL (for registering webhooks with platforms)
	WebhookBaseURL string
}

// Load loads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "")
		dbName := getEnv("DB_NAME", "erp_sync")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8099"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: databaseURL,

		// GCP
		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		// Sync Settings
		SyncBatchSize:    getEnvAsInt("SYNC_BATCH_SIZE", 100),
		SyncMaxRetries:   getEnvAsInt("SYNC_MAX_RETRIES", 3),
		SyncRetryDelay:   getEnvAsDuration("SYNC_RETRY_DELAY", 5*time.Second),
		SyncTimeout:      getEnvAsDuration("SYNC_TIMEOUT", 30*time.Minute),
		InventoryBatch:   getEnvAsInt("INVENTORY_BATCH_SIZE", 50),
		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
		SchedulerTick:    getEnvAsDuration("SCHEDULER_TICK", time.Minute),

		// Rate Limiting
		DefaultRateLimit: getEnvAsInt("DEFAULT_RATE_LIMIT", 10),

		// Webhook Base URL
		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", ""),
	}

	// Validate required fields
	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if config.GCPProjectID == "" {
		log.Println("Warning: GCP_PROJECT_ID not set, secret-backed credentials will be disabled")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
