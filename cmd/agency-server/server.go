package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carelink/agency/internal/config"
	"github.com/carelink/agency/internal/domain/chart"
	"github.com/carelink/agency/internal/domain/document"
	"github.com/carelink/agency/internal/domain/patient"
	"github.com/carelink/agency/internal/domain/tenant"
	"github.com/carelink/agency/internal/domain/user"
	"github.com/carelink/agency/internal/platform/auth"
	"github.com/carelink/agency/internal/platform/blobstore"
	"github.com/carelink/agency/internal/platform/cache"
	"github.com/carelink/agency/internal/platform/db"
	"github.com/carelink/agency/internal/platform/events"
	"github.com/carelink/agency/internal/platform/middleware"
	"github.com/carelink/agency/internal/platform/ocr"
	"github.com/carelink/agency/internal/platform/telemetry"
)

const defaultBodyLimit = 1 << 20

func runServer() error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.IsDev() {
		logger.Warn().Msg("development mode: unauthenticated requests run as agency_admin")
	}

	// Database
	ctx := context.Background()
	userPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer userPool.Close()
	adminPool, err := db.NewPool(ctx, cfg.DatabaseAdminURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database with admin credentials")
	}
	defer adminPool.Close()
	userDB := db.NewUserDB(userPool)
	adminDB := db.NewAdminDB(adminPool)
	logger.Info().Msg("connected to database")

	// Infrastructure
	entityCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeCache()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure object storage")
	}

	publisher := newPublisher(cfg)
	defer publisher.Close()

	dispatcher, err := newDispatcher(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ocr queue")
	}

	metrics := telemetry.New()

	// Domain services
	tenantSvc := tenant.NewService(tenant.NewRepoPG(userDB), entityCache)
	userSvc := user.NewService(user.NewUserRepo(adminDB), user.NewInvitationRepo(adminDB), adminDB, user.Config{
		ActivationBaseURL: cfg.ActivationBaseURL,
		InvitationTTL:     cfg.InvitationTTL,
	})
	patientSvc := patient.NewService(patient.NewRepoPG(userDB), entityCache, cfg.CacheTTL)
	chartSvc := chart.NewService(chart.Deps{
		Repo:       chart.NewRepoPG(userDB),
		Tx:         userDB,
		Patients:   patientSvc,
		Clinicians: userSvc,
		Cache:      entityCache,
		CacheTTL:   cfg.CacheTTL,
		Events:     publisher,
		Metrics:    metrics,
		Logger:     logger,
	})
	documentSvc := document.NewService(document.Deps{
		Repo:                  document.NewRepoPG(userDB),
		Orphans:               document.NewOrphanRepoPG(userDB),
		Tx:                    userDB,
		Store:                 store,
		Charts:                chartSvc,
		OCR:                   dispatcher,
		Metrics:               metrics,
		Logger:                logger,
		PublicURLPrefix:       cfg.StoragePublicURL,
		SignedURLTTL:          cfg.StorageSignedURLTTL,
		AllowUnsignedFallback: cfg.StorageUnsignedFallback,
	})

	e := newEcho(cfg, logger, metrics, tenantSvc)
	e.GET("/health/db", db.HealthHandler(userDB, adminDB))

	apiV1 := e.Group("/api/v1")
	tenant.NewHandler(tenantSvc).RegisterRoutes(apiV1)
	user.NewHandler(userSvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	chart.NewHandler(chartSvc).RegisterRoutes(apiV1)
	document.NewHandler(documentSvc).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with the global middleware chain and the public
// health and metrics routes.
func newEcho(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics, tenants db.TenantLookup) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.BodyLimit(defaultBodyLimit, document.MaxUploadBytes+defaultBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, auth.AuthSkipper))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	e.Use(db.TenantMiddleware(db.TenantConfig{
		Lookup:        tenants,
		DefaultTenant: cfg.DefaultTenant,
		Skipper:       auth.AuthSkipper,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return e
}

// newCache uses Redis when REDIS_URL is set and an in-process cache otherwise.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), func() {}, nil
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisURL, "agency")
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { _ = rc.Close() }, nil
}

// newStore returns the S3 store, or an in-memory store for development
// without a configured endpoint.
func newStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.IsDev() && cfg.StorageEndpoint == "" {
		return blobstore.NewMemoryStore(cfg.StoragePublicURL), nil
	}
	client, err := blobstore.NewS3Client(ctx, cfg.StorageRegion, cfg.StorageEndpoint)
	if err != nil {
		return nil, err
	}
	return blobstore.NewS3Store(client, cfg.StorageBucket, cfg.StoragePublicURL), nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Noop{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.ChartEventsTopic)
}

func newDispatcher(ctx context.Context, cfg *config.Config) (ocr.Dispatcher, error) {
	if cfg.OCRQueueURL == "" {
		return ocr.Noop{}, nil
	}
	client, err := ocr.NewSQSClient(ctx, cfg.StorageRegion, "")
	if err != nil {
		return nil, fmt.Errorf("sqs client: %w", err)
	}
	return ocr.NewSQSDispatcher(client, cfg.OCRQueueURL), nil
}
