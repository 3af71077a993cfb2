// Package routes defines the API routing configuration.
// It wires repositories, services, and handlers, and groups routes by
// authentication requirements.
package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"stowpay/internal/config"
	"stowpay/internal/handlers"
	"stowpay/internal/middleware"
	"stowpay/internal/models"
	"stowpay/internal/provider"
	"stowpay/internal/repositories"
	"stowpay/internal/services/dispatch"
	"stowpay/internal/services/fee"
	"stowpay/internal/services/seller"
	"stowpay/internal/services/settlement"
	"stowpay/internal/services/webhook"
)

// SetupRoutes configures all application routes. It returns the dispatcher
// so main can drain deferred work on shutdown.
func SetupRoutes(app *fiber.App, db *gorm.DB) *dispatch.Dispatcher {
	// Repositories
	settlementRepo := repositories.NewSettlementRepository(db)
	sellerRepo := repositories.NewSellerAccountRepository(db)
	storeRepo := repositories.NewStoreRepository(db)
	eventRepo := repositories.NewWebhookEventRepository(db)

	// Provider gateway: credentials load once here, never per call.
	providerCfg := provider.Config{
		BaseURL:          config.GetEnv("PROVIDER_BASE_URL", "https://api.payout-provider.test"),
		APIKey:           config.GetEnv("PROVIDER_API_KEY", ""),
		EncryptionSecret: config.GetEnv("PROVIDER_ENCRYPTION_SECRET", ""),
		EncryptionSalt:   config.GetEnv("PROVIDER_ENCRYPTION_SALT", "stowpay-provider"),
		Timeout:          config.GetDurationEnv("PROVIDER_TIMEOUT", 0),
	}
	channel, err := provider.NewChannel(providerCfg.EncryptionSecret, providerCfg.EncryptionSalt)
	if err != nil {
		log.Fatalf("failed to initialize provider channel: %v", err)
	}
	retryPolicy := provider.DefaultRetryPolicy()
	gateway := provider.NewGateway(providerCfg, channel, retryPolicy)

	dispatcher := dispatch.NewDispatcher(
		config.GetIntEnv("DISPATCH_WORKERS", 4),
		config.GetIntEnv("DISPATCH_QUEUE_SIZE", 256),
		config.GetDurationEnv("DISPATCH_TASK_TIMEOUT", 0),
	)

	// Services
	sellerService := seller.NewService(sellerRepo, storeRepo, gateway, repositories.CacheService)
	settlementService := settlement.NewService(
		settlementRepo,
		storeRepo,
		sellerService,
		gateway,
		fee.NewCalculator(),
		dispatcher,
		retryPolicy,
		repositories.CacheService,
		settlement.Config{
			Currency:        config.GetEnv("PAYOUT_CURRENCY", "KRW"),
			BalanceCacheTTL: config.GetDurationEnv("BALANCE_CACHE_TTL", 0),
		},
	)

	verifier := webhook.NewVerifier(
		config.GetEnv("WEBHOOK_SECRET", ""),
		config.GetDurationEnv("WEBHOOK_FRESHNESS_WINDOW", 0),
	)
	reconciler := webhook.NewService(verifier, settlementRepo, sellerRepo, eventRepo, settlementService, dispatcher, repositories.CacheService)

	// Handlers
	settlementHandler := handlers.NewSettlementHandler(settlementService)
	sellerHandler := handlers.NewSellerHandler(sellerService)
	webhookHandler := handlers.NewWebhookHandler(reconciler)

	app.Get("/health", handlers.HealthCheck)

	// Webhook ingress: authenticated by HMAC signature, not JWT.
	webhooks := app.Group("/webhooks")
	webhooks.Post("/payout", webhookHandler.PayoutChanged)
	webhooks.Post("/seller", webhookHandler.SellerChanged)

	// Protected API routes
	authMiddleware := middleware.NewAuthMiddleware(config.GetEnv("JWT_SECRET", ""))
	api := app.Group("/api", authMiddleware.Handler)

	settlements := api.Group("/settlements")
	settlements.Post("/", middleware.HasPermission(models.PermissionSettlementWrite), settlementHandler.CreateSettlement)
	settlements.Get("/", middleware.HasPermission(models.PermissionSettlementRead), settlementHandler.ListSettlements)
	settlements.Get("/summary", middleware.HasPermission(models.PermissionSettlementRead), settlementHandler.GetSummary)
	settlements.Get("/:id", middleware.HasPermission(models.PermissionSettlementRead), settlementHandler.GetSettlement)
	settlements.Post("/:id/process", middleware.HasPermission(models.PermissionSettlementWrite), settlementHandler.ProcessSettlement)
	settlements.Post("/:id/cancel", middleware.HasPermission(models.PermissionSettlementWrite), settlementHandler.CancelSettlement)

	api.Get("/balance", middleware.HasPermission(models.PermissionBalanceRead), settlementHandler.GetBalance)

	sellers := api.Group("/sellers")
	sellers.Post("/register", middleware.HasPermission(models.PermissionSellerWrite), sellerHandler.RegisterSeller)
	sellers.Get("/:storeId", middleware.HasPermission(models.PermissionSellerRead), sellerHandler.GetSeller)

	return dispatcher
}
