package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/observability"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	applog "github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/queue"
)

// Settlement results of a delivery.
const (
	OutcomeAck        = "ack"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
	OutcomeSkipped    = "skipped"
)

// Consumer yields work queue deliveries until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context) (<-chan queue.Delivery, error)
}

// EssayWorker drains the essay work queue one delivery at a time.
type EssayWorker struct {
	consumer  Consumer
	processor service.ProcessingService
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewEssayWorker builds a worker. Each delivery is bounded by timeout.
func NewEssayWorker(consumer Consumer, processor service.ProcessingService, timeout time.Duration, logger zerolog.Logger) *EssayWorker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &EssayWorker{
		consumer:  consumer,
		processor: processor,
		timeout:   timeout,
		logger:    logger.With().Str("component", "essay_worker").Logger(),
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (w *EssayWorker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info().Dur("timeout", w.timeout).Msg("essay worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("essay worker stopping")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			w.Handle(ctx, delivery)
		}
	}
}

// Handle processes one delivery and settles it, returning the settlement result.
func (w *EssayWorker) Handle(ctx context.Context, delivery queue.Delivery) string {
	logger := w.logger.With().Int("delivery_attempt", delivery.Attempt).Logger()

	var job service.EssayJob
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		return w.settle(logger, delivery, OutcomeDeadLetter, "malformed", fmt.Errorf("decode job: %w", err))
	}
	if err := job.Validate(); err != nil {
		return w.settle(logger, delivery, OutcomeDeadLetter, "malformed", err)
	}
	logger = logger.With().Str("essay_id", job.EssayID).Logger()
	if job.CorrelationID != "" {
		logger = logger.With().Str(applog.CorrelationField, job.CorrelationID).Logger()
	}

	jobCtx, cancel := context.WithTimeout(applog.WithCorrelationID(ctx, job.CorrelationID), w.timeout)
	defer cancel()

	start := time.Now()
	_, err := w.processor.Process(jobCtx, job)
	observability.ProcessingDuration().Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return w.settle(logger, delivery, OutcomeAck, "processed", nil)
	case errors.Is(err, service.ErrAlreadyProcessed):
		return w.settle(logger, delivery, OutcomeSkipped, "skipped", nil)
	default:
		return w.settle(logger, delivery, OutcomeRetry, "failed", err)
	}
}

func (w *EssayWorker) settle(logger zerolog.Logger, delivery queue.Delivery, result, outcome string, cause error) string {
	var err error
	switch result {
	case OutcomeAck, OutcomeSkipped:
		err = delivery.Ack()
	case OutcomeRetry:
		err = delivery.Retry()
	default:
		err = delivery.Reject()
	}

	observability.QueueMessages().WithLabelValues(result).Inc()
	observability.EssaysProcessed().WithLabelValues(outcome).Inc()

	event := logger.Info()
	if cause != nil {
		event = logger.Warn().Err(cause)
	}
	event.Str("outcome", outcome).Str("result", result).Msg("delivery settled")

	if err != nil {
		logger.Error().Err(err).Str("result", result).Msg("failed to settle delivery")
	}

	return result
}
