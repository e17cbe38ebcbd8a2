package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
	projectapp "github.com/chantier/backend/internal/application/project"
	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/infrastructure/cache"
	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/chantier/backend/internal/infrastructure/event"
	"github.com/chantier/backend/internal/infrastructure/logger"
	"github.com/chantier/backend/internal/infrastructure/migration"
	"github.com/chantier/backend/internal/infrastructure/persistence"
	"github.com/chantier/backend/internal/infrastructure/printing"
	"github.com/chantier/backend/internal/infrastructure/scheduler"
	"github.com/chantier/backend/internal/infrastructure/storage"
	"github.com/chantier/backend/internal/infrastructure/telemetry"
	"github.com/chantier/backend/internal/interfaces/http/handler"
	"github.com/chantier/backend/internal/interfaces/http/middleware"
	"github.com/chantier/backend/internal/interfaces/http/router"
	"github.com/chantier/backend/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	_ "github.com/chantier/backend/docs"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
	documentsURL    = "/api/v1/documents"
)

//go:generate swag init -d ../.. -g cmd/server/main.go -o ../../docs --parseInternal --overridesFile ../../.swaggo

//	@title			Chantier Ledger API
//	@version		1.0
//	@description	Quotes, bills and project financials for renovation sites

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token issued by the portal. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// Bootstrap logger for the telemetry setup itself
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	tel, err := telemetry.Setup(ctx, telemetry.ConfigFrom(cfg.Telemetry), bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.Telemetry.ServiceName,
	}, tel.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	log.Info("Starting ledger backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormCfg := logger.DefaultGormConfig(cfg.Log.Level)
	gormCfg.SlowThreshold = cfg.Telemetry.DBSlowQueryThresh
	gormLog := logger.NewGormLogger(log, gormCfg)
	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry), log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}
	meter := tel.Meter(telemetry.MeterName)
	if _, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB); err != nil {
		log.Warn("Failed to register connection pool metrics", zap.Error(err))
	}

	// Schema
	migrator, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Up(); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	templateRepo := persistence.NewGormTemplateRepository(db.DB)
	sequenceRepo := persistence.NewGormSequenceRepository(db.DB, cfg.Ledger.NumberingTimeout)
	projectRepo := persistence.NewGormProjectRepository(db.DB)
	expenseRepo := persistence.NewGormExpenseRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	ledgerReader := persistence.NewGormLedgerReader(db.DB)

	snapshotCache := cache.NewSnapshotCache(ctx, cfg.Redis, cfg.Cache, log)
	defer func() {
		if err := snapshotCache.Close(); err != nil {
			log.Error("Error closing snapshot cache", zap.Error(err))
		}
	}()

	// Event bus
	bus := event.NewInMemoryEventBus(log)
	serializer := event.NewEventSerializer()
	if err := event.RegisterLedgerEvents(serializer); err != nil {
		log.Fatal("Failed to register ledger events", zap.Error(err))
	}
	audit := event.NewAuditLogHandler(serializer, log)
	bus.Subscribe(audit, audit.EventTypes()...)
	invalidation := projectapp.NewSnapshotInvalidationHandler(snapshotCache, log)
	bus.Subscribe(invalidation, invalidation.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Document rendering
	locale, err := language.Parse(cfg.Documents.Locale)
	if err != nil {
		log.Warn("Unknown document locale, falling back to French",
			zap.String("locale", cfg.Documents.Locale), zap.Error(err))
		locale = language.French
	}
	unit, err := currency.ParseISO(cfg.Ledger.Currency)
	if err != nil {
		log.Fatal("Invalid ledger currency", zap.String("currency", cfg.Ledger.Currency), zap.Error(err))
	}
	templateEngine := printing.NewTemplateEngine(printing.WithLocale(locale), printing.WithCurrency(unit))
	pdfRenderer, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
		DefaultTimeout: cfg.Documents.RenderTimeout,
		RemoteURL:      cfg.Documents.ChromeURL,
		NoSandbox:      true,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
	}
	defer func() {
		if err := pdfRenderer.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}()

	documentStore, err := storage.NewDocumentStore(ctx, &cfg.Storage, documentsURL, log)
	if err != nil {
		log.Fatal("Failed to initialize document storage", zap.Error(err))
	}

	// Services
	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	invoiceService := invoicingapp.NewInvoiceService(invoiceRepo, templateRepo, sequenceRepo, log,
		invoicingapp.WithEventPublisher(bus),
		invoicingapp.WithMetrics(ledgerMetrics),
		invoicingapp.WithDefaultPaymentDays(cfg.Ledger.DefaultPaymentDays),
	)
	templateService := invoicingapp.NewTemplateService(templateRepo, log)
	templateService.SetEventPublisher(bus)
	seeded, err := templateService.EnsureDefaults(ctx, printing.DefaultTemplateSeeds(string(invoicing.FileTypePDF)))
	if err != nil {
		log.Fatal("Failed to seed default templates", zap.Error(err))
	}
	if seeded > 0 {
		log.Info("Seeded default templates", zap.Int("count", seeded))
	}
	documentService := invoicingapp.NewDocumentService(invoiceRepo, templateRepo, templateEngine, pdfRenderer,
		documentStore, cfg.Ledger.Currency, cfg.Storage.PresignExpiry, log)
	financialService := projectapp.NewFinancialService(projectRepo, expenseRepo, paymentRepo, ledgerReader,
		snapshotCache, log)
	financialService.SetEventPublisher(bus)

	// Daily overdue sweep
	sweeperCfg, err := scheduler.OverdueSweeperConfigFrom(cfg.Ledger)
	if err != nil {
		log.Fatal("Invalid overdue sweep schedule", zap.Error(err))
	}
	sweeper := scheduler.NewOverdueSweeper(sweeperCfg, invoiceService, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start overdue sweeper", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	documentsDir := ""
	if !cfg.Storage.Enabled {
		documentsDir = cfg.Storage.LocalPath
	}
	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:    cfg.HTTP,
		Auth:    cfg.Auth,
		Swagger: cfg.Swagger,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Security: middleware.DefaultSecurityConfig(),
		Logger:   log,
		Handlers: router.Handlers{
			Invoices:    handler.NewInvoiceHandler(invoiceService, documentService),
			Templates:   handler.NewTemplateHandler(templateService),
			Projects:    handler.NewProjectHandler(financialService),
			Maintenance: handler.NewMaintenanceHandler(sweeper),
		},
		Health:         handler.NewHealthHandler(db, version),
		DocumentsDir:   documentsDir,
		RequestTimeout: cfg.HTTP.WriteTimeout,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping overdue sweeper", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
