package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/analysis"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/config"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/database"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/handler"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/observability"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/worker"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/ai"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/queue"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, cfg.AppEnv == "development").With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
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

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+" worker", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	workQueue, err := queue.Dial(queue.Config{
		URL:             cfg.QueueURL,
		Queue:           cfg.QueueName,
		DeadLetterQueue: cfg.DeadLetterQueue,
		MaxDeliveries:   cfg.QueueMaxDeliveries,
		LeaseTimeout:    cfg.QueueLeaseTimeout,
		ConsumerTag:     "essay-worker",
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to work queue")
	}
	defer workQueue.Close()

	var evaluator ai.Evaluator
	switch {
	case cfg.AIProvider != "openai":
		log.Warn().Str("provider", cfg.AIProvider).Msg("unsupported ai provider, word feedback disabled")
	case cfg.OpenAIAPIKey == "":
		log.Warn().Msg("openai api key not set, word feedback disabled")
	default:
		openAI, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure evaluator")
		}
		evaluator = openAI
	}

	processor := service.NewProcessingService(
		repository.NewEssayRepository(db),
		store,
		analysis.NewAnalyzer(nil, cfg.MaxCandidates),
		evaluator,
		service.NewEssayEventBus(natsConn, cfg.NATSSubjectPrefix, log),
		log,
	)

	metricsApp := observability.NewMetricsServer(handler.HealthCheck())
	go func() {
		if err := metricsApp.Listen(cfg.WorkerMetricsAddress()); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	if err := worker.NewEssayWorker(workQueue, processor, cfg.WorkerTimeout, log).Run(ctx); err != nil {
		log.Error().Err(err).Msg("essay worker stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsApp.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown failed")
	}

	log.Info().Msg("worker stopped")
}
