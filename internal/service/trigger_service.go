package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
)

// JobPublisher enqueues serialized work queue messages.
type JobPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// TriggerService turns object-created notifications into work queue jobs.
type TriggerService interface {
	// HandleObjectCreated enqueues the essay behind key. It reports false when the key is not an essay.
	HandleObjectCreated(ctx context.Context, bucket, key string) (bool, error)
}

type triggerService struct {
	publisher JobPublisher
	logger    zerolog.Logger
}

// NewTriggerService builds the upload trigger.
func NewTriggerService(publisher JobPublisher, logger zerolog.Logger) TriggerService {
	return &triggerService{
		publisher: publisher,
		logger:    logger.With().Str("component", "trigger_service").Logger(),
	}
}

func (s *triggerService) HandleObjectCreated(ctx context.Context, bucket, key string) (bool, error) {
	essayID, ok := EssayIDFromKey(key)
	if !ok {
		s.logger.Debug().Str("key", key).Msg("ignoring object outside essay prefix")
		return false, nil
	}

	correlationID := logger.CorrelationID(ctx)
	body, err := json.Marshal(EssayJob{EssayID: essayID, FileKey: key, Bucket: bucket, CorrelationID: correlationID})
	if err != nil {
		return false, fmt.Errorf("marshal essay job: %w", err)
	}

	if err := s.publisher.Publish(ctx, body); err != nil {
		log := logger.FromContext(ctx, s.logger)
		log.Error().Err(err).Str("essay_id", essayID).Msg("failed to enqueue essay")
		return false, fmt.Errorf("enqueue essay %s: %w", essayID, err)
	}

	log := logger.FromContext(ctx, s.logger)
	log.Info().Str("essay_id", essayID).Str("bucket", bucket).Msg("essay enqueued")
	return true, nil
}

// EssayIDFromKey extracts the essay identifier from an essays/<id>.txt key.
func EssayIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, models.EssayKeyPrefix) || !strings.HasSuffix(key, ".txt") {
		return "", false
	}

	id := strings.TrimSuffix(strings.TrimPrefix(key, models.EssayKeyPrefix), ".txt")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
