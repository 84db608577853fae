package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/config"
	"github.com/noah-isme/gema-teacher-panel/internal/database"
	"github.com/noah-isme/gema-teacher-panel/internal/handler"
	"github.com/noah-isme/gema-teacher-panel/internal/middleware"
	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	"github.com/noah-isme/gema-teacher-panel/internal/observability"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/router"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	cloud "github.com/noah-isme/gema-teacher-panel/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "teacher-panel").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DatabaseConnectWait, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.DatabaseAutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, schema and analytics caching disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	dialect, err := schema.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		logger.Fatal().Err(err).Msg("unsupported schema dialect")
	}
	catalog := schema.NewCachedCatalog(schema.NewSQLCatalog(db, dialect, cfg.DatabaseSchema), redisClient, cfg.SchemaCacheTTL, logger)
	capabilities := service.NewCapabilityService(schema.NewProber(catalog, logger), catalog, logger)

	var storage service.FileStorage
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
	}
	if cloudCfg.Configured() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, archive uploads disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	bounds := qb.Bounds{Min: cfg.PageSizeMin, Max: cfg.PageSizeMax, Default: cfg.PageSizeDefault}
	events := service.NewEventPublisher(natsConn, cfg.NATSSubject, logger)

	sectionRepo := repository.NewSectionRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	testRepo := repository.NewTestRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, bounds, logger)
	dashboardService := service.NewDashboardService(service.DashboardRepositories{
		Sections:    sectionRepo,
		Problems:    problemRepo,
		Submissions: submissionRepo,
		Tests:       testRepo,
	}, capabilities, cfg.DashboardRecentWindow, logger)
	sectionService := service.NewSectionService(sectionRepo, capabilities, service.SectionServiceConfig{
		Trimesters: normalize.NewTrimesterMapper(cfg.TrimesterTable),
		Bounds:     bounds,
	}, validate, activityService, logger)
	problemService := service.NewProblemService(problemRepo, capabilities, bounds, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, capabilities, bounds, validate, activityService, events, logger)
	testService := service.NewTestService(testRepo, sectionRepo, capabilities, bounds, validate, activityService, events, logger)
	archiveService := service.NewArchiveService(testRepo, capabilities, storage, activityService, cfg.ArchiveMaxBytes, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, capabilities, redisClient, cfg.AnalyticsCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.ArchiveMaxBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{
		Logger:        logger,
		MetricsPrefix: router.TeacherPrefix,
	})
	router.Register(app, cfg, router.Dependencies{
		DashboardHandler:  handler.NewDashboardHandler(dashboardService, logger),
		CapabilityHandler: handler.NewCapabilityHandler(capabilities, logger),
		SectionHandler:    handler.NewSectionHandler(sectionService, logger),
		ProblemHandler:    handler.NewProblemHandler(problemService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		TestHandler:       handler.NewTestHandler(testService, archiveService, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		RateLimit:         middleware.MutationRateLimit("teacher-mutations", cfg.MutationRateLimit, cfg.MutationRateWindow),
		Metrics:           observability.MetricsHandler(),
		Health:            healthChecks(db, redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(ctx context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
