package main

import (
	"context"
	"log"
	"os"
	"strings"

	"erp-sync-service/internal/config"
	"erp-sync-service/internal/database"
	"erp-sync-service/internal/handlers"
	"erp-sync-service/internal/middleware"
	"erp-sync-service/internal/models"
	"erp-sync-service/internal/repository"
	"erp-sync-service/internal/scheduler"
	"erp-sync-service/internal/secrets"
	"erp-sync-service/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := buildLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.IntegrationConnection{},
		&models.SyncSchedule{},
		&models.SyncLinkRecord{},
		&models.Warehouse{},
		&models.InventorySnapshot{},
		&models.OrderRecord{},
		&models.OrderLine{},
		&models.Customer{},
		&models.Item{},
		&models.SyncRun{},
		&models.SyncRunLog{},
		&models.WebhookEvent{},
	); err != nil {
		log.Printf("Warning: Auto-migration failed: %v", err)
	}
	log.Println("Database models migrated")

	// Initialize GCP Secret Manager
	var secretManager *secrets.GCPSecretManager
	if cfg.GCPProjectID != "" {
		ctx := context.Background()
		secretManager, err = secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Printf("Warning: Failed to initialize GCP Secret Manager: %v", err)
		} else {
			log.Println("GCP Secret Manager initialized")
		}
	}

	// Initialize repositories
	integrationRepo := repository.NewIntegrationRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	runRepo := repository.NewSyncRunRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)

	// Initialize services
	mapper := services.NewUpsertMapper(linkRepo)
	orderSync := services.NewOrderSyncService(orderRepo, mapper, logger)
	reconciler := services.NewInventoryReconciler(linkRepo, inventoryRepo, logger)

	var credentialSource services.CredentialSource
	if secretManager != nil {
		credentialSource = secretManager
	}
	syncService := services.NewSyncService(integrationRepo, orderRepo, runRepo, orderSync, reconciler, credentialSource, logger)
	webhookService := services.NewWebhookService(integrationRepo, webhookRepo, orderSync, syncService, logger)
	gate := services.NewSchedulingGate(scheduleRepo, nil)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	integrationHandler := handlers.NewIntegrationHandler(integrationRepo, syncService)
	syncHandler := handlers.NewSyncHandler(syncService, runRepo)
	webhookHandler := handlers.NewWebhookHandler(webhookService, webhookRepo)
	inventoryHandler := handlers.NewInventoryHandler(inventoryRepo)
	orderHandler := handlers.NewOrderHandler(orderRepo)

	// Start the scheduler loop
	if cfg.SchedulerEnabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sched := scheduler.New(integrationRepo, gate, syncService, logger, cfg.SchedulerTick)
		sched.Start(ctx)
		defer sched.Stop()
		log.Printf("Scheduler started (tick: %s)", cfg.SchedulerTick)
	}

	// Setup router
	router := setupRouter(cfg, db, logger, healthHandler, integrationHandler, syncHandler, webhookHandler, inventoryHandler, orderHandler)

	// Start server
	log.Printf("ERP Sync Service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	db *gorm.DB,
	logger *zap.Logger,
	healthHandler *handlers.HealthHandler,
	integrationHandler *handlers.IntegrationHandler,
	syncHandler *handlers.SyncHandler,
	webhookHandler *handlers.WebhookHandler,
	inventoryHandler *handlers.InventoryHandler,
	orderHandler *handlers.OrderHandler,
) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Security headers middleware
	router.Use(middleware.SecurityHeaders())

	// CORS middleware
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}
	router.Use(middleware.CORS(origins))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		// Integrations
		integrations := v1.Group("/integrations")
		{
			integrations.GET("", integrationHandler.List)
			integrations.POST("", integrationHandler.Create)
			integrations.GET("/:id", integrationHandler.Get)
			integrations.PATCH("/:id", integrationHandler.Update)
			integrations.DELETE("/:id", integrationHandler.Delete)
			integrations.POST("/:id/test", integrationHandler.TestConnection)
			integrations.POST("/:id/refresh-token", integrationHandler.RefreshCredentials)
			integrations.POST("/:id/enable", integrationHandler.Enable)

			// Sync operations
			integrations.POST("/:id/sync", syncHandler.Trigger)
			integrations.GET("/:id/runs", syncHandler.ListRuns)

			// Synced orders
			integrations.GET("/:id/orders", orderHandler.List)
			integrations.GET("/:id/orders/:code", orderHandler.Get)
		}

		v1.GET("/runs/:runId", syncHandler.GetRun)

		// Warehouses and stock
		inventory := v1.Group("/inventory")
		{
			inventory.GET("/warehouses", inventoryHandler.ListWarehouses)
			inventory.POST("/warehouses", inventoryHandler.CreateWarehouse)
			inventory.POST("/stock", inventoryHandler.AdjustStock)
			inventory.GET("/stock/:itemKey", inventoryHandler.GetItemStock)
		}
	}

	// Webhook endpoint - public but signature-verified per integration
	router.POST("/api/v1/webhooks/:id", webhookHandler.Handle)
	router.GET("/api/v1/webhooks/pending", webhookHandler.ListPending)

	return router
}
