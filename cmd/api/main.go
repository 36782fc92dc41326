package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-fundo-ops/internal/classifier"
	"go-fundo-ops/internal/config"
	"go-fundo-ops/internal/handler"
	"go-fundo-ops/internal/middleware"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/repository/mongodb"
	"go-fundo-ops/internal/repository/sheets"
	"go-fundo-ops/internal/scheduler"
	"go-fundo-ops/internal/service"
	"go-fundo-ops/pkg/database"
	"go-fundo-ops/pkg/jwt"
	applogger "go-fundo-ops/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	logger := applogger.Must(applogger.New())
	defer logger.Sync()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be provided")
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseSettings())
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	// Auto Migrate (Hati-hati di production, sebaiknya pakai tools migrasi terpisah)
	if err := db.AutoMigrate(repository.Tables()...); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	// 3. Dependency Injection (Wiring Layers)
	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	lotRepo := repository.NewLotRepo(db)
	egressRepo := repository.NewEgressRepo(db)
	orderRepo := repository.NewWorkOrderRepo(db)
	journalRepo := repository.NewJournalRepo(db)
	gw := repository.NewGateway(db, applogger.Named(logger, "gateway"))
	locks := service.NewLockSet()
	settings := service.SettingsFromConfig(cfg)

	signer := jwt.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(userRepo, signer, applogger.Named(logger, "auth"))
	userService := service.NewUserService(userRepo, applogger.Named(logger, "users"))
	catalogService := service.NewCatalogService(gw, productRepo, settings, applogger.Named(logger, "catalog"))
	kardexService := service.NewKardexService(gw, productRepo, lotRepo, egressRepo, orderRepo, locks, settings, applogger.Named(logger, "kardex"))
	orderService := service.NewWorkOrderService(gw, orderRepo, lotRepo, egressRepo, locks, settings, applogger.Named(logger, "work_orders"))
	journalService := service.NewJournalService(gw, journalRepo, settings, applogger.Named(logger, "journals"))
	syncService := service.NewSyncService(gw, applogger.Named(logger, "sync"))
	dashService := service.NewDashboardService(kardexService, orderRepo, journalRepo, settings, applogger.Named(logger, "dashboard"))

	// 4. Seed the first admin
	if created, err := authService.EnsureAdmin(cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, "Fundo Administrator"); err != nil {
		logger.Warn("failed to seed admin user", zap.Error(err))
	} else if created {
		logger.Info("admin user created", zap.String("email", cfg.Auth.AdminEmail))
	}

	// 5. Risk model
	riskModel, err := classifier.Load(cfg.Risk.ModelPath)
	if err != nil {
		logger.Fatal("failed to load risk model", zap.Error(err))
	}
	riskService := service.NewRiskService(riskModel, kardexService, applogger.Named(logger, "risk"))

	// 6. Optional backends: digest archive and spreadsheet mirror
	ctx := context.Background()
	var archive mongodb.DigestArchive
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			logger.Warn("digest archive disabled", zap.Error(err))
		} else {
			archive = mongoRepo
			defer mongoRepo.Close(context.Background())
		}
	}

	var publisher service.WorkbookPublisher
	if cfg.Sheets.SpreadsheetID != "" {
		sheetRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, applogger.Named(logger, "sheets"))
		if err != nil {
			logger.Warn("spreadsheet publishing disabled", zap.Error(err))
		} else {
			publisher = sheetRepo
		}
	}
	exportService := service.NewExportService(catalogService, kardexService, journalService, orderService, publisher, settings, applogger.Named(logger, "export"))

	// 7. Scheduler
	sched := scheduler.NewScheduler(cfg.Scheduling.DigestCron, cfg.Location(), dashService, archive, applogger.Named(logger, "scheduler"))
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// 8. Handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	kardexHandler := handler.NewKardexHandler(kardexService)
	orderHandler := handler.NewWorkOrderHandler(orderService)
	journalHandler := handler.NewJournalHandler(journalService, syncService)
	dashHandler := handler.NewDashboardHandler(dashService, func() time.Time {
		return model.DateOnly(time.Now(), cfg.Location())
	}).WithArchive(archive)
	riskHandler := handler.NewRiskHandler(riskService)
	exportHandler := handler.NewExportHandler(exportService)

	// 9. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Fundo Field Ops v1.0",
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
		BodyLimit:    16 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS
	app.Use(middleware.RequestLogger(applogger.Named(logger, "http")))
	app.Use(middleware.RequestDeadline(cfg.Server.RequestTimeout))

	// 10. Routes
	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(authService))
	admin := middleware.RequireAdmin()

	protected.Get("/auth/me", authHandler.Me)

	// Users
	protected.Get("/users", admin, userHandler.GetUsers)
	protected.Get("/users/:id", admin, userHandler.GetUser)
	protected.Post("/users", admin, userHandler.CreateUser)
	protected.Put("/users/:id", admin, userHandler.UpdateUser)

	// Catalog
	protected.Get("/products", catalogHandler.GetProducts)
	protected.Post("/products", catalogHandler.CreateProduct)
	protected.Post("/products/import", admin, catalogHandler.ImportCatalog)
	protected.Get("/products/:code", catalogHandler.GetProduct)
	protected.Put("/products/:code", catalogHandler.UpdateProduct)
	protected.Post("/products/:code/disable", admin, catalogHandler.DisableProduct)

	// Kardex
	protected.Post("/lots", kardexHandler.RegisterIngress)
	protected.Get("/lots/:product/suggestions", kardexHandler.Suggestions)
	protected.Post("/egresses", kardexHandler.PostEgress)
	protected.Put("/egresses/:id", admin, kardexHandler.CorrectEgress)
	protected.Get("/kardex/lots", kardexHandler.StockByLot)
	protected.Get("/kardex/products", kardexHandler.StockByProduct)
	protected.Get("/kardex/expiring", kardexHandler.Expiring)
	protected.Get("/kardex/low-stock", kardexHandler.LowStock)
	protected.Get("/kardex/availability", kardexHandler.Availability)
	protected.Get("/kardex/movements", kardexHandler.Movements)

	// Work orders
	protected.Post("/work-orders", orderHandler.Plan)
	protected.Get("/work-orders", orderHandler.List)
	protected.Get("/work-orders/:id", orderHandler.Get)
	protected.Post("/work-orders/:id/mix", orderHandler.ConfirmMix)
	protected.Post("/work-orders/:id/apply", orderHandler.RecordApplication)
	protected.Post("/work-orders/:id/cancel", orderHandler.Cancel)
	protected.Post("/work-orders/:id/rollback", admin, orderHandler.Rollback)
	protected.Delete("/work-orders/:id", orderHandler.Delete)

	// Journals and device sync
	protected.Post("/journals/:kind", journalHandler.Append)
	protected.Get("/journals/:kind", journalHandler.List)
	protected.Get("/journals/:kind/sessions", journalHandler.Sessions)
	protected.Post("/sync/:queue_id", journalHandler.Sync)

	// Dashboard
	dash := protected.Group("/dashboard")
	dash.Get("/summary", dashHandler.Summary)
	dash.Get("/inventory-value", dashHandler.InventoryValue)
	dash.Get("/low-stock", dashHandler.LowStock)
	dash.Get("/expiring", dashHandler.Expiring)
	dash.Get("/active-orders", dashHandler.ActiveOrders)
	dash.Get("/tractor-hours", dashHandler.TractorHours)
	dash.Get("/berry-diameter", dashHandler.BerryDiameter)
	dash.Get("/trap-pressure", dashHandler.TrapPressure)
	dash.Get("/thinning-ranking", dashHandler.ThinningRanking)
	dash.Get("/digest", dashHandler.Digest)
	dash.Get("/digests", dashHandler.DigestHistory)

	// Risk
	protected.Post("/risk/assess", riskHandler.Assess)

	// Exports
	exports := protected.Group("/exports")
	exports.Get("/catalog", exportHandler.Catalog)
	exports.Get("/kardex", exportHandler.Kardex)
	exports.Get("/journals/:kind", exportHandler.Journal)
	exports.Get("/work-orders/:id", exportHandler.WorkOrder)
	exports.Post("/journals/:kind/publish", exportHandler.PublishJournal)
	exports.Post("/work-orders/:id/publish", exportHandler.PublishWorkOrder)
	exports.Post("/:target/publish", exportHandler.Publish)

	// 11. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.Panic("server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	sched.Stop()
	if err := app.Shutdown(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
