package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appclient "github.com/karte/backend/internal/application/client"
	appkarte "github.com/karte/backend/internal/application/karte"
	appreport "github.com/karte/backend/internal/application/report"
	appstaff "github.com/karte/backend/internal/application/staff"
	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/infrastructure/cache"
	"github.com/karte/backend/internal/infrastructure/config"
	"github.com/karte/backend/internal/infrastructure/docstore"
	"github.com/karte/backend/internal/infrastructure/logger"
	"github.com/karte/backend/internal/infrastructure/media"
	"github.com/karte/backend/internal/infrastructure/persistence"
	"github.com/karte/backend/internal/infrastructure/scheduler"
	"github.com/karte/backend/internal/infrastructure/storage"
	"github.com/karte/backend/internal/infrastructure/telemetry"
	"github.com/karte/backend/internal/interfaces/http/handler"
	"github.com/karte/backend/internal/interfaces/http/middleware"
	"github.com/karte/backend/internal/interfaces/http/router"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.NewForApp(cfg.App, cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OpenTelemetry providers. Each one is a no-op when disabled.
	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := logProvider.Bridge(baseLog, cfg.Telemetry.ServiceName)
	defer func() {
		_ = log.Sync()
	}()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = meterProvider.Shutdown(shutdownCtx)
		_ = tracerProvider.Shutdown(shutdownCtx)
		_ = logProvider.Shutdown(shutdownCtx)
	}()
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	profiler, err := telemetry.NewProfiler(cfg.Profiling, cfg.Telemetry.ServiceName, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()
	if cfg.Profiling.SpanProfiles && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting karte backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Store.Driver),
	)

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}

	// Document store
	store, health, closeStore, err := openStore(ctx, cfg, meter, log)
	if err != nil {
		log.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("Error closing document store", zap.Error(err))
		}
	}()
	store = docstore.WithTracing(store, tracerProvider.Tracer("karte/docstore"), cfg.Store.Driver)

	// Repositories
	karteRepo := persistence.NewDocstoreKarteRepository(store, log)
	clientRepo := persistence.NewDocstoreClientRepository(store)
	staffRepo := persistence.NewDocstoreStaffRepository(store)

	// Record numbering: store count, or Redis counters seeded from it
	serials, closeSerials, err := cache.NewSerialSourceFactory(cfg.Numbering, cfg.Redis,
		cache.WithLogger(log),
		cache.WithCountFallback(true),
	).Create(ctx, karteRepo)
	if err != nil {
		log.Fatal("Failed to initialize record numbering", zap.Error(err))
	}
	defer func() {
		if err := closeSerials(); err != nil {
			log.Error("Error closing serial source", zap.Error(err))
		}
	}()
	numbers := karte.NewNumberGenerator(serials, loc)
	images := media.NewImageEncoder(cfg.Media)

	// Session metrics are optional; a failed instrument only loses metrics
	var sessionOpts []appkarte.SessionOption
	if karteMetrics, err := telemetry.NewKarteMetrics(meter); err != nil {
		log.Warn("Record metrics unavailable", zap.Error(err))
	} else {
		sessionOpts = append(sessionOpts, appkarte.WithMetrics(karteMetrics))
	}

	// Application services
	sessions := appkarte.NewSessionManager(func(sctx appkarte.SessionContext) *appkarte.Session {
		return appkarte.NewSession(sctx, karteRepo, numbers, images, log, sessionOpts...)
	}, cfg.Session.IdleTimeout, log)
	if _, err := telemetry.RegisterSessionGauge(meter, sessions.Len); err != nil {
		log.Warn("Session gauge unavailable", zap.Error(err))
	}
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	directoryService := appclient.NewDirectoryService(clientRepo, log)
	staffService := appstaff.NewStaffService(staffRepo, log)
	reportService := appreport.NewReportService(karteRepo, loc, log, appreport.WithStaffRoster(staffService))

	// Report archives go to object storage when one is configured
	objects, closeObjects, err := storage.Open(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	defer func() {
		if err := closeObjects(); err != nil {
			log.Error("Error closing object storage", zap.Error(err))
		}
	}()
	var exportOpts []appreport.ExportOption
	if objects != nil {
		exportOpts = append(exportOpts, appreport.WithArchive(objects, cfg.Storage.Prefix, cfg.Storage.PresignExpiration))
		log.Info("Report archiving enabled", zap.String("driver", cfg.Storage.Driver), zap.String("bucket", cfg.Storage.Bucket))
	}
	exportService := appreport.NewExportService(reportService, log, exportOpts...)
	if cfg.Scheduler.Enabled && exportService.ArchiveEnabled() {
		stopArchive, err := startArchiveSchedule(ctx, cfg, exportService, log)
		if err != nil {
			log.Fatal("Failed to start report archive schedule", zap.Error(err))
		}
		defer stopArchive()
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order matters: the request id must exist before the span
	// and the request logger read it.
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.SpanErrorMarker())
	if profiler.IsEnabled() {
		engine.Use(middleware.Profiling("/api/v1/system/health", "/api/v1/system/ping"))
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", logger.SessionHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimit),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	engine.Use(middleware.HTTPMetrics(meter))

	idempotencyKeys := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	defer idempotencyKeys.Close()
	engine.Use(middleware.Idempotency(idempotencyKeys, cfg.HTTP.IdempotencyTTL, log))

	router.NewRouter(engine).Register(
		handler.NewSystemHandler(cfg.App.Name, version, health),
		handler.NewSessionHandler(sessions),
		handler.NewKarteHandler(sessions, log),
		handler.NewClientHandler(directoryService),
		handler.NewStaffHandler(staffService),
		handler.NewReportHandler(reportService, handler.WithExporter(exportService)),
	).Setup()

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

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// openStore opens the configured document store backend. It also returns
// the health probe for /system/health and the function releasing the
// backend's connections.
func openStore(ctx context.Context, cfg *config.Config, meter metric.Meter, log *zap.Logger) (docstore.Store, handler.HealthChecker, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		log.Warn("Using the in-memory document store; records are lost on restart")
		store := docstore.NewMemoryStore()
		return store, docstore.Prober{Store: store}, func() error { return nil }, nil

	case config.StoreDriverPostgres:
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
			logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
		)
		db, err := persistence.NewDatabase(ctx, &cfg.Database, persistence.WithGormLogger(gormLog))
		if err != nil {
			return nil, nil, nil, err
		}
		if err := telemetry.NewDBTracing(cfg.Telemetry, log).Register(db.DB); err != nil {
			log.Warn("Database tracing unavailable", zap.Error(err))
		}
		if sqlDB, err := db.DB.DB(); err == nil {
			if _, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB); err != nil {
				log.Warn("Database pool metrics unavailable", zap.Error(err))
			}
		}
		log.Info("Database connected successfully",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.DBName),
		)
		return docstore.NewGormStore(db.DB), db, db.Close, nil

	case config.StoreDriverFirestore:
		store, err := docstore.NewFirestoreStore(ctx, docstore.FirestoreConfig(cfg.Firestore))
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Firestore connected", zap.String("project", cfg.Firestore.ProjectID))
		return store, docstore.Prober{Store: store}, store.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// startArchiveSchedule archives last month's reports to object storage on
// the configured cron schedule. The returned function stops the trigger and
// drains the workers.
func startArchiveSchedule(ctx context.Context, cfg *config.Config, exports *appreport.ExportService, log *zap.Logger) (func(), error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	workers := scheduler.NewScheduler(scheduler.Config{
		Workers:       cfg.Scheduler.Workers,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
	}, scheduler.JobExecutorFunc(func(ctx context.Context, job *scheduler.Job) error {
		_, err := exports.Archive(ctx, appreport.ExportRequest{
			Kind:   appreport.ExportKind(job.Report),
			Year:   job.Year,
			Month:  job.Month,
			Format: job.Format,
		})
		return err
	}), log)

	trigger, err := scheduler.NewArchiveTrigger(scheduler.TriggerConfig{
		Cron:     cfg.Scheduler.Cron,
		Location: loc,
		Reports:  []string{string(appreport.ExportMonthly), string(appreport.ExportStaff)},
		Format:   cfg.Scheduler.Format,
	}, workers, log)
	if err != nil {
		return nil, err
	}
	if err := workers.Start(ctx); err != nil {
		return nil, err
	}
	trigger.Start()

	return func() {
		if err := trigger.Stop(); err != nil {
			log.Warn("Archive trigger shutdown failed", zap.Error(err))
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := workers.Stop(stopCtx); err != nil {
			log.Warn("Archive workers did not stop in time", zap.Error(err))
		}
	}, nil
}
