package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	groupapp "github.com/groupbuy/backend/internal/application/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/auth"
	"github.com/groupbuy/backend/internal/infrastructure/cache"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/groupbuy/backend/internal/infrastructure/event"
	"github.com/groupbuy/backend/internal/infrastructure/logger"
	"github.com/groupbuy/backend/internal/infrastructure/migration"
	"github.com/groupbuy/backend/internal/infrastructure/payment"
	"github.com/groupbuy/backend/internal/infrastructure/persistence"
	"github.com/groupbuy/backend/internal/infrastructure/realtime"
	"github.com/groupbuy/backend/internal/infrastructure/scheduler"
	"github.com/groupbuy/backend/internal/infrastructure/shipping"
	"github.com/groupbuy/backend/internal/infrastructure/storage"
	"github.com/groupbuy/backend/internal/infrastructure/telemetry"
	"github.com/groupbuy/backend/internal/interfaces/http/handler"
	"github.com/groupbuy/backend/internal/interfaces/http/middleware"
	"github.com/groupbuy/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/groupbuy/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Group Order API
//	@version		1.0
//	@description	Shared carts with membership, group discounts, realtime updates and checkout

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry: logs first so the zap bridge sees everything that follows
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log provider", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
	}

	log.Info("Starting Group Order API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", telemetry.ServiceVersion),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter("github.com/groupbuy/backend")

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingEndpoint,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", zap.Error(err))
	}
	if profiler != nil && profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.MigrateOnStart {
		if err := migrate(db, cfg.Database.Driver, log); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbTracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if cfg.Database.Driver == config.DriverSQLite {
		dbTracingCfg.DBSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access database pool", zap.Error(err))
	}
	if err := telemetry.RegisterDBPoolMetrics(meter, sqlDB.Stats); err != nil {
		log.Warn("Failed to register database pool metrics", zap.Error(err))
	}

	// Redis backs the idempotency store, token blacklist and realtime relay
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisOptions(cfg.Redis))
		if err != nil {
			log.Warn("Redis unavailable, continuing with in-memory fallbacks", zap.Error(err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("Error closing redis client", zap.Error(err))
				}
			}()
		}
	}

	storeOpts := []cache.IdempotencyStoreFactoryOption{
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	}
	if redisClient != nil {
		storeOpts = append(storeOpts, cache.WithRedisClient(redisClient))
	}
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, storeOpts...).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Realtime hub, relayed across instances through Redis pub/sub
	hub := realtime.NewHub(
		realtime.WithBufferSize(cfg.HTTP.SSEBufferSize),
		realtime.WithMaxSubscribers(cfg.HTTP.MaxStreamsPerNode),
		realtime.WithLogger(log),
	)
	var relay *realtime.RedisRelay
	if cfg.Realtime.RelayEnabled && redisClient != nil {
		relay = realtime.NewRedisRelay(redisClient, hub,
			realtime.WithChannelPrefix(cfg.Realtime.ChannelPrefix),
			realtime.WithInstanceID(cfg.Realtime.InstanceID),
			realtime.WithRelayLogger(log),
		)
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Realtime relay stopped", zap.Error(err))
			}
		}()
		log.Info("Realtime relay enabled", zap.String("channel_prefix", cfg.Realtime.ChannelPrefix))
	}
	if err := telemetry.RegisterStreamGauge(meter, func() int64 {
		return int64(hub.Stats().Subscribers)
	}); err != nil {
		log.Warn("Failed to register stream gauge", zap.Error(err))
	}

	// Domain events flow through the bus to the hub
	eventBus := event.NewInMemoryEventBus(log)
	forwarder := realtime.NewEventForwarder(hub, log)
	eventBus.Subscribe(forwarder)

	// Checkout receipts
	var receiptStorage groupapp.ReceiptStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3Storage.EnsureBucket(bucketCtx); err != nil {
			log.Warn("Receipt bucket is not ready", zap.String("bucket", s3Storage.Bucket()), zap.Error(err))
		}
		cancel()
		receiptStorage = s3Storage
		log.Info("Receipt storage enabled", zap.String("bucket", s3Storage.Bucket()))
	} else {
		receiptStorage = storage.NewMemoryObjectStorage()
	}
	receiptArchiver := groupapp.NewReceiptArchiver(receiptStorage, log)
	eventBus.Subscribe(receiptArchiver)
	log.Info("Event handlers registered", zap.Strings("realtime_events", forwarder.EventTypes()))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Application services
	discountPolicy, err := cfg.GroupOrder.DiscountPolicy()
	if err != nil {
		log.Fatal("Invalid discount tiers", zap.Error(err))
	}
	paymentGateway, err := payment.NewGateway(cfg.Payment, log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}
	metrics, err := telemetry.NewGroupOrderMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register group order metrics", zap.Error(err))
	}

	groupRepo := persistence.NewGormGroupOrderRepository(db.DB)
	addressBook := persistence.NewGormAddressBook(db.DB)
	checkout := groupapp.NewCheckoutOrchestrator(
		groupRepo,
		addressBook,
		shipping.NewFlatRateCalculator(cfg.Shipping),
		paymentGateway,
		persistence.NewGormOrderWriter(db.DB),
		log,
	)
	groupOrderService := groupapp.NewGroupOrderService(groupapp.Dependencies{
		Repository:     groupRepo,
		Users:          persistence.NewGormUserDirectory(db.DB),
		Addresses:      addressBook,
		Catalog:        persistence.NewGormCatalog(db.DB),
		Hub:            hub,
		EventPublisher: eventBus,
		Idempotency:    idempotencyStore,
		Checkout:       checkout,
		Receipts:       receiptStorage,
		Metrics:        metrics,
		Logger:         log,
	}, groupapp.ServiceConfig{
		DiscountPolicy:    discountPolicy,
		DefaultMaxMembers: cfg.GroupOrder.DefaultMaxMembers,
		IdempotencyTTL:    cfg.GroupOrder.IdempotencyTTL,
		CheckoutTimeout:   cfg.GroupOrder.CheckoutTimeout,
	})
	log.Info("Group order service ready",
		zap.Int("discount_tiers", len(discountPolicy.Tiers)),
		zap.String("payment_provider", cfg.Payment.Provider),
	)

	// Deadline sweeps
	var expiryScheduler *scheduler.Scheduler
	var expiryTrigger *scheduler.ExpiryTrigger
	if cfg.Expiry.Enabled {
		schedulerConfig := scheduler.DefaultSchedulerConfig()
		schedulerConfig.Workers = cfg.Expiry.Workers
		schedulerConfig.JobTimeout = cfg.Expiry.Timeout
		expiryScheduler = scheduler.NewScheduler(schedulerConfig, scheduler.NewExpiryExecutor(groupOrderService), log)
		if err := expiryScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start expiry scheduler", zap.Error(err))
		}
		receiptArchiver.UseQueue(expiryScheduler)
		expiryTrigger = scheduler.NewExpiryTrigger(scheduler.ExpiryTriggerConfig{
			Interval:        cfg.Expiry.Interval,
			BatchSize:       cfg.Expiry.BatchSize,
			CheckoutTimeout: cfg.GroupOrder.CheckoutTimeout,
		}, groupRepo, expiryScheduler, log)
		if err := expiryTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start expiry trigger", zap.Error(err))
		}
		log.Info("Expiry sweeps started",
			zap.Duration("interval", cfg.Expiry.Interval),
			zap.Int("workers", cfg.Expiry.Workers),
		)
	}

	// Authentication
	jwtService := auth.NewJWTService(cfg.JWT)
	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if redisClient != nil {
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request id, logging, recovery, tracing, metrics,
	// profiling labels, then the security and size guards
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{Meter: meter, Logger: log}))
	if profiler != nil && profiler.IsEnabled() {
		engine.Use(middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.TokenBlacklist = blacklist
	jwtConfig.AllowHeaderIdentity = cfg.JWT.AllowHeaderIdentity
	jwtConfig.Logger = log
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)

	// Health and readiness stay outside the API prefix and auth
	systemHandler := handler.NewSystemHandler("Group Order API", telemetry.ServiceVersion).
		AddCheck("database", func(context.Context) error { return db.Ping() }).
		WithStreams(hub)
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	// Swagger documentation endpoint
	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any",
			middleware.SwaggerProtection(middleware.SwaggerConfig{
				Enabled:     cfg.Swagger.Enabled,
				RequireAuth: cfg.Swagger.RequireAuth,
				AllowedIPs:  cfg.Swagger.AllowedIPs,
			}, jwtMiddleware),
			ginSwagger.WrapHandler(swaggerFiles.Handler),
		)
	}

	apiMiddleware := []gin.HandlerFunc{jwtMiddleware}
	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.RateLimitRPS),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	groupOrderHandler := handler.NewGroupOrderHandler(groupOrderService)
	streamHandler := handler.NewGroupOrderStreamHandler(groupOrderService,
		handler.WithStreamHeartbeat(cfg.HTTP.SSEHeartbeat),
	)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithAPIMiddleware(apiMiddleware...))
	for _, group := range router.GroupOrderRoutes(groupOrderHandler, streamHandler) {
		r.Register(group)
	}
	r.Register(router.SystemRoutes(systemHandler))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Readiness fails first; open streams are ended so Shutdown does not wait on them
	systemHandler.SetDraining()
	streamHandler.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if expiryTrigger != nil {
		if err := expiryTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping expiry trigger", zap.Error(err))
		}
	}
	if expiryScheduler != nil {
		if err := expiryScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping expiry scheduler", zap.Error(err))
		}
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if relay != nil {
		relay.Stop()
	}
	hub.Close()
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrate applies the versioned SQL migrations on PostgreSQL. SQLite has no
// migration files and uses the model definitions instead.
func migrate(db *persistence.Database, driver string, log *zap.Logger) error {
	if driver == config.DriverSQLite {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return runMigrations(sqlDB, log)
}

func runMigrations(sqlDB *sql.DB, log *zap.Logger) error {
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared pool
	return m.Up()
}
