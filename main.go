// Package main provides the main entry point for the commission engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/handlers"
	"github.com/polisku/commission-engine/app/middleware"
	"github.com/polisku/commission-engine/app/router"
	"github.com/polisku/commission-engine/app/scheduler"
	"github.com/polisku/commission-engine/app/services"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/config"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting commission engine...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger through a rotating file sink
// according to LoggingConfig.
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	sink := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, sink))
		return
	}
	log.SetOutput(sink)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&models.Agent{},
			&models.Referral{},
			&models.CommissionRate{},
			&models.CommissionTransaction{},
			&models.WalletTransaction{},
			&models.ProcessedPayment{},
			&models.WithdrawalRequest{},
			&models.AuditLog{},
		); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if client == nil {
		return cancel
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
	stopFuncs = append(stopFuncs, cancel)

	// Initialize repositories
	agentRepo := repository.NewAgentRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	rateRepo := repository.NewCommissionRateRepository(db)
	commissionTxRepo := repository.NewCommissionTransactionRepository(db)
	walletTxRepo := repository.NewWalletTransactionRepository(db)
	processedPaymentRepo := repository.NewProcessedPaymentRepository(db)
	withdrawalRepo := repository.NewWithdrawalRequestRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		rc,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	var withdrawalNotifier services.WithdrawalNotifier = services.NoopWithdrawalNotifier{}
	if rc != nil {
		withdrawalNotifier = services.NewRedisWithdrawalNotifier(rc)
	}

	// Initialize flows
	authFlow := businessflow.NewAuthFlow(
		agentRepo,
		auditRepo,
		tokenService,
		cfg.Admin.Username,
		cfg.Admin.PasswordHash,
		cfg.JWT.AccessTokenTTL,
	)

	referralFlow := businessflow.NewReferralFlow(
		agentRepo,
		referralRepo,
		auditRepo,
		rc,
		db,
	)

	disbursementFlow := businessflow.NewDisbursementFlow(
		agentRepo,
		referralRepo,
		rateRepo,
		commissionTxRepo,
		walletTxRepo,
		processedPaymentRepo,
		auditRepo,
		db,
	)

	walletFlow := businessflow.NewWalletFlow(
		agentRepo,
		walletTxRepo,
		commissionTxRepo,
	)

	withdrawalFlow := businessflow.NewWithdrawalFlow(
		agentRepo,
		withdrawalRepo,
		walletTxRepo,
		auditRepo,
		withdrawalNotifier,
		db,
	)

	rateFlow := businessflow.NewRateFlow(rateRepo, auditRepo, db)

	reportFlow := businessflow.NewReportFlow(commissionTxRepo)

	if cfg.Scheduler.ReconciliationEnabled {
		reconciler := scheduler.NewReconciliationScheduler(
			agentRepo,
			walletTxRepo,
			auditRepo,
			log.Default(),
			cfg.Scheduler.ReconciliationInterval,
		)
		stopFuncs = append(stopFuncs, reconciler.Start(context.Background()))
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authFlow)
	referralHandler := handlers.NewReferralHandler(referralFlow)
	paymentHandler := handlers.NewPaymentHandler(disbursementFlow)
	walletHandler := handlers.NewWalletHandler(walletFlow)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalFlow)
	rateAdminHandler := handlers.NewRateAdminHandler(rateFlow)
	reportHandler := handlers.NewReportAdminHandler(reportFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authMiddleware,
		authHandler,
		referralHandler,
		paymentHandler,
		walletHandler,
		withdrawalHandler,
		rateAdminHandler,
		reportHandler,
		cfg.Security.AllowedOrigins,
		cfg.Security.ServiceToken,
	)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
