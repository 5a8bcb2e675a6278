package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/config"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/queue"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, cfg.AppEnv == "development").With().Str("service", "trigger").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	workQueue, err := queue.Dial(queue.Config{
		URL:             cfg.QueueURL,
		Queue:           cfg.QueueName,
		DeadLetterQueue: cfg.DeadLetterQueue,
		MaxDeliveries:   cfg.QueueMaxDeliveries,
		LeaseTimeout:    cfg.QueueLeaseTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to work queue")
	}
	defer workQueue.Close()

	trigger := service.NewTriggerService(workQueue, log)

	log.Info().Str("bucket", store.Bucket()).Msg("listening for essay uploads")
	for event := range store.Listen(ctx, models.EssayKeyPrefix, ".txt") {
		if event.Err != nil {
			log.Warn().Err(event.Err).Msg("bucket notification error")
			continue
		}
		eventCtx := logger.WithCorrelationID(ctx, event.CorrelationID)
		if _, err := trigger.HandleObjectCreated(eventCtx, event.Bucket, event.Key); err != nil {
			log.Error().Err(err).Str("key", event.Key).Str(logger.CorrelationField, event.CorrelationID).Msg("failed to enqueue essay")
		}
	}

	log.Info().Msg("trigger stopped")
}
