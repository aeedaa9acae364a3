// Package main provides the main entry point for the lead distribution service
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

	"github.com/amirphl/lead-distributor/app/handlers"
	"github.com/amirphl/lead-distributor/app/middleware"
	"github.com/amirphl/lead-distributor/app/router"
	"github.com/amirphl/lead-distributor/app/services"
	businessflow "github.com/amirphl/lead-distributor/business_flow"
	"github.com/amirphl/lead-distributor/config"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *log.Logger
	stopFuncs []func()
}

func main() {
	log.Println("Starting lead distributor...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, logCloser, err := initializeLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	// Initialize application
	app, err := initializeApplication(cfg, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		appLogger.Printf("Server starting on %s (env=%s, version=%s)", address, cfg.Deployment.Environment, cfg.Deployment.Version)

		if err := app.server.Listen(address); err != nil {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	appLogger.Println("Shutting down gracefully...")

	// Stop accepting requests before the audit workers drain
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Printf("Error during shutdown: %v", err)
	}

	runStopFuncs(app.stopFuncs)

	appLogger.Println("Server stopped")
}

// initializeLogger builds the process logger and makes it the default for packages that log through log.Printf
func initializeLogger(cfg config.LoggingConfig) (*log.Logger, io.Closer, error) {
	logger, closer, err := utils.NewLogger(utils.LoggerOptions{
		Output:     cfg.Output,
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(logger.Writer())
	log.SetFlags(logger.Flags())
	return logger, closer, nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, appLogger *log.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(appLogger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLogger.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache connects to Redis when either the cache or the tenant lock needs it
func initializeCache(cfg config.CacheConfig, lockProvider string, appLogger *log.Logger) (*redis.Client, error) {
	useRedis := (cfg.Enabled && cfg.Provider == "redis") || lockProvider == "redis"
	if !useRedis {
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

	appLogger.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, appLogger *log.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
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
					appLogger.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeLocker picks the tenant lock implementation
func initializeLocker(cfg config.DistributionConfig, rc *redis.Client, prefix string) businessflow.TenantLocker {
	if cfg.LockProvider == "redis" && rc != nil {
		return businessflow.NewRedisTenantLocker(rc, prefix, cfg.LockTTL, cfg.LockTimeout, cfg.LockRetryInterval)
	}
	return businessflow.NewLocalTenantLocker(cfg.LockTimeout)
}

// initializePublisher connects the assignment event publisher, or returns a no-op one when RabbitMQ is disabled
func initializePublisher(cfg config.RabbitMQConfig, appLogger *log.Logger) (services.EventPublisher, error) {
	if !cfg.Enabled {
		appLogger.Println("RabbitMQ disabled; assignment events will not be published")
		return services.NoopEventPublisher{}, nil
	}
	publisher, err := services.NewRabbitEventPublisher(cfg.URL, cfg.Exchange, cfg.RoutingKey, "lead-distributor", appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	appLogger.Printf("Publishing assignment events to exchange %q with routing key %q", cfg.Exchange, cfg.RoutingKey)
	return publisher, nil
}

// initializeApplication initializes the main application components
// runStopFuncs releases resources in reverse order of construction
func runStopFuncs(stopFuncs []func()) {
	for i := len(stopFuncs) - 1; i >= 0; i-- {
		stopFuncs[i]()
	}
}

func initializeApplication(cfg *config.ProductionConfig, appLogger *log.Logger) (app *Application, err error) {
	var stopFuncs []func()
	defer func() {
		if err != nil {
			runStopFuncs(stopFuncs)
		}
	}()

	db, err := initializeDatabase(cfg.Database, appLogger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rc, err := initializeCache(cfg.Cache, cfg.Distribution.LockProvider, appLogger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, appLogger))
	}

	// Initialize repositories
	vendorRepo := repository.NewVendorRotationRepository(db)
	stateRepo := repository.NewDistributionStateRepository(db)
	pipelineRepo := repository.NewPipelineRepository(db)
	logRepo := repository.NewLeadAssignmentLogRepository(db)

	publisher, err := initializePublisher(cfg.RabbitMQ, appLogger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() {
		if err := publisher.Close(); err != nil {
			appLogger.Printf("Failed to close event publisher: %v", err)
		}
	})

	recorder := businessflow.NewAsyncAssignmentRecorder(
		logRepo,
		publisher,
		cfg.Distribution.AuditBufferSize,
		cfg.Distribution.AuditWorkers,
		cfg.Distribution.AuditWriteTimeout,
		appLogger,
	)
	stopFuncs = append(stopFuncs, recorder.Start())

	locker := initializeLocker(cfg.Distribution, rc, cfg.Cache.RedisPrefix)
	appLogger.Printf("Tenant lock provider: %s (timeout %s)", cfg.Distribution.LockProvider, cfg.Distribution.LockTimeout)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	appLogger.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	distributionFlow := businessflow.NewDistributionFlow(
		vendorRepo,
		stateRepo,
		pipelineRepo,
		locker,
		recorder,
		cfg.Distribution.MaxRotationSlots,
		appLogger,
	)
	simulationFlow := businessflow.NewSimulationFlow(
		vendorRepo,
		stateRepo,
		pipelineRepo,
		cfg.Distribution.MaxRotationSlots,
		cfg.Distribution.QueuePreviewLength,
	)
	rotationFlow := businessflow.NewRotationFlow(vendorRepo, pipelineRepo)
	assignmentLogFlow := businessflow.NewAssignmentLogFlow(logRepo)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	appRouter := router.NewFiberRouter(cfg, authMiddleware, router.Handlers{
		Distribution:  handlers.NewDistributionHandler(distributionFlow, simulationFlow),
		Rotation:      handlers.NewRotationHandler(rotationFlow),
		AssignmentLog: handlers.NewAssignmentLogHandler(assignmentLogFlow),
	}, healthChecks)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		logger:    appLogger,
		stopFuncs: stopFuncs,
	}, nil
}
