package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	integrationapp "github.com/restohub/backend/internal/application/integration"
	"github.com/restohub/backend/internal/infrastructure/cache"
	"github.com/restohub/backend/internal/infrastructure/config"
	"github.com/restohub/backend/internal/infrastructure/logger"
	"github.com/restohub/backend/internal/infrastructure/persistence"
	"github.com/restohub/backend/internal/infrastructure/platform"
	"github.com/restohub/backend/internal/infrastructure/scheduler"
	"github.com/restohub/backend/internal/infrastructure/telemetry"
	"github.com/restohub/backend/internal/infrastructure/vault"
	"github.com/restohub/backend/internal/interfaces/http/handler"
	"github.com/restohub/backend/internal/interfaces/http/middleware"
	"github.com/restohub/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting integration sync manager",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceVersion:    version,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceVersion:    version,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter(telemetry.TracerName)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithPlugin(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		}, log)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	cipher, err := vault.NewCipher(cfg.Vault.MasterKey)
	if err != nil {
		log.Fatal("Failed to initialize credential vault", zap.Error(err))
	}

	// Repositories and collaborators
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB, cipher)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	inboxRepo := persistence.NewGormInboxRepository(db.DB)

	factory := platform.NewFactory(platform.FactoryConfig{
		IFoodBaseURL:    cfg.Platforms.IFoodBaseURL,
		LalamoveBaseURL: cfg.Platforms.LalamoveBaseURL,
		RequestTimeout:  cfg.Platforms.RequestTimeout,
	})
	sink := integrationapp.NewLoggingOrderSink(log)

	leaseFactory := cache.NewSyncLeaseFactory(cfg.Sync.LeaseBackend, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	lease, closeLease, err := leaseFactory.CreateLease()
	if err != nil {
		log.Fatal("Failed to initialize sync lease", zap.Error(err))
	}
	defer func() {
		_ = closeLease()
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	manager, err := integrationapp.NewManager(integrationapp.ManagerDeps{
		Integrations: integrationRepo,
		SyncLogs:     syncLogRepo,
		Inbox:        inboxRepo,
		Factory:      factory,
		Sink:         sink,
		Lease:        lease,
		Metrics:      syncMetrics,
	}, integrationapp.ManagerConfig{
		AdapterTimeout:   cfg.Sync.AdapterTimeout,
		LeaseTTL:         cfg.Sync.LeaseTTL,
		CompletionBuffer: cfg.Sync.CompletionBuffer,
	}, log.Named("integration_manager"))
	if err != nil {
		log.Fatal("Failed to create integration manager", zap.Error(err))
	}
	if err := manager.Start(); err != nil {
		log.Fatal("Failed to start integration manager", zap.Error(err))
	}
	restored, err := manager.Restore(ctx)
	if err != nil {
		log.Fatal("Failed to restore integrations", zap.Error(err))
	}
	log.Info("Integrations restored", zap.Int("count", restored))

	inboxService := integrationapp.NewInboxService(inboxRepo, integrationRepo, factory, sink, log.Named("inbox"))

	var syncScheduler *scheduler.SyncScheduler
	if cfg.Sync.SchedulerEnabled {
		syncScheduler, err = scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
			CheckInterval: cfg.Sync.CheckInterval,
		}, manager, log)
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(httpMetrics)

	healthHandler := handler.NewHealthHandler(db, manager)
	engine.GET("/health", healthHandler.Check)

	syncLimiter := middleware.NewRateLimiter(cfg.HTTP.ManualSyncLimit, cfg.HTTP.ManualSyncWindow)
	defer syncLimiter.Stop()

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.Tenant(middleware.TenantConfig{Logger: log}),
		middleware.SpanEnricher(),
	)
	r.Register(router.IntegrationRoutes(router.IntegrationHandlers{
		Integration: handler.NewIntegrationHandler(manager),
		Inbox:       handler.NewInboxHandler(inboxService),
		Delivery:    handler.NewDeliveryHandler(manager),
	}, middleware.RateLimitByKey(syncLimiter, middleware.TenantPathKey("id"))))
	r.Setup()
	engine.GET(r.BasePath()+"/health", healthHandler.Check)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if syncScheduler != nil {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop sync scheduler", zap.Error(err))
		}
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop integration manager", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
