package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/config"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/database"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/handler"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/middleware"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/observability"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/router"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, cfg.AppEnv == "development").With().Str("service", "api").Logger()
	if err := cfg.RequireAPI(); err != nil {
		log.Fatal().Err(err).Msg("incomplete configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn().Msg("redis url not set, metrics cache disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+" api", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	store, err := storage.New(storage.Config{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		UseSSL:    cfg.StorageUseSSL,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create object store")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare essay bucket")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	essayRepo := repository.NewEssayRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)

	events := service.NewEssayEventBus(natsConn, cfg.NATSSubjectPrefix, log)
	if err := events.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to essay events")
	}

	metricsService := service.NewMetricsService(essayRepo, assignmentRepo, studentRepo, redisClient, cfg.MetricsCacheTTL, log)
	unsubscribe := events.Subscribe(func(event service.EssayUpdatedEvent) {
		if err := metricsService.Invalidate(context.Background(), event); err != nil {
			log.Warn().Err(err).Str("essay_id", event.EssayID).Msg("failed to invalidate metrics cache")
		}
	})
	defer unsubscribe()

	essayService := service.NewEssayService(
		essayRepo,
		assignmentRepo,
		studentRepo,
		store,
		service.NewStudentMatcher(studentRepo, service.DefaultMatchThreshold, log),
		events,
		validate,
		service.EssayServiceConfig{PresignTTL: cfg.PresignTTL},
		log,
	)

	jwtCfg := middleware.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadKB + 64) * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &log, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		EssayHandler: handler.NewEssayHandler(essayService, events, handler.EssayHandlerConfig{
			MaxUploadBytes: int64(cfg.MaxUploadKB) * 1024,
			SubmitLimiter:  middleware.RateLimit("essay_submit", cfg.EssayRatePerMinute, time.Minute),
		}, log),
		AuthHandler:       handler.NewAuthHandler(service.NewTeacherService(teacherRepo, log), log),
		AssignmentHandler: handler.NewAssignmentHandler(service.NewAssignmentService(assignmentRepo, validate, log), log),
		StudentHandler:    handler.NewStudentHandler(service.NewStudentService(studentRepo, validate, log), log),
		MetricsHandler:    handler.NewMetricsHandler(metricsService, log),
		JWTMiddleware:     middleware.JWTProtected(jwtCfg),
		OptionalJWT:       middleware.OptionalJWT(jwtCfg),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, log)
}

func waitForShutdown(ctx context.Context, app *fiber.App, log zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("server stopped")
}
