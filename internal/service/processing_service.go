package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/analysis"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/ai"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/storage"
)

var (
	// ErrAlreadyProcessed indicates a redelivered job for an essay that already has results.
	ErrAlreadyProcessed = errors.New("essay already processed")
	// ErrObjectNotFound indicates the essay text is missing from the object store.
	ErrObjectNotFound = errors.New("essay text not found in object store")
)

// EvaluationUnavailable is the comment stored when a word could not be evaluated.
const EvaluationUnavailable = "evaluation unavailable"

const excerptRadius = 100

// EssayJob is the work queue message announcing an essay ready for analysis.
type EssayJob struct {
	EssayID       string `json:"essay_id"`
	FileKey       string `json:"file_key"`
	Bucket        string `json:"bucket,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Validate reports malformed jobs that can never succeed.
func (j EssayJob) Validate() error {
	if strings.TrimSpace(j.EssayID) == "" {
		return errors.New("essay_id is required")
	}
	return nil
}

// ObjectReader fetches stored essay text.
type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ProcessingService analyses a queued essay and records the results.
type ProcessingService interface {
	Process(ctx context.Context, job EssayJob) (models.Essay, error)
}

type processingService struct {
	essays    repository.EssayRepository
	store     ObjectReader
	analyzer  *analysis.Analyzer
	evaluator ai.Evaluator
	events    EssayEventPublisher
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProcessingService wires the worker use case. The evaluator and events publisher may be nil.
func NewProcessingService(essays repository.EssayRepository, store ObjectReader, analyzer *analysis.Analyzer, evaluator ai.Evaluator, events EssayEventPublisher, logger zerolog.Logger) ProcessingService {
	if analyzer == nil {
		analyzer = analysis.NewAnalyzer(nil, analysis.DefaultMaxCandidates)
	}

	return &processingService{
		essays:    essays,
		store:     store,
		analyzer:  analyzer,
		evaluator: evaluator,
		events:    events,
		tracer:    otel.Tracer("github.com/lousydropout/vocab-recommendation-sub000/internal/service/processing"),
		logger:    logger.With().Str("component", "processing_service").Logger(),
		now:       time.Now,
	}
}

func (s *processingService) Process(parent context.Context, job EssayJob) (models.Essay, error) {
	ctx, span := s.tracer.Start(parent, "essay.process", trace.WithAttributes(attribute.String("essay_id", job.EssayID)))
	defer span.End()

	essay, err := s.process(ctx, job)
	if err != nil && !errors.Is(err, ErrAlreadyProcessed) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return essay, err
}

func (s *processingService) process(ctx context.Context, job EssayJob) (models.Essay, error) {
	essay, err := s.essays.GetByID(ctx, job.EssayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Essay{}, fmt.Errorf("%w: %s", ErrEssayNotFound, job.EssayID)
		}
		return models.Essay{}, fmt.Errorf("load essay: %w", err)
	}

	// Presigned uploads carry no object metadata; fall back to the id recorded at submission.
	if logger.CorrelationID(ctx) == "" {
		ctx = logger.WithCorrelationID(ctx, essay.CorrelationID)
	}
	log := logger.FromContext(ctx, s.logger).With().Str("essay_id", job.EssayID).Logger()

	if !ShouldProcess(essay) {
		return essay, ErrAlreadyProcessed
	}

	claimed, err := s.essays.MarkProcessing(ctx, essay.ID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return essay, ErrAlreadyProcessed
		}
		return models.Essay{}, fmt.Errorf("mark processing: %w", err)
	}
	essay = claimed
	log.Info().Int("attempt", essay.ProcessingAttempts).Msg("essay processing started")

	key := job.FileKey
	if key == "" {
		key = essay.FileKey
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return models.Essay{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return models.Essay{}, fmt.Errorf("fetch essay text: %w", err)
	}

	text := string(body)
	result, err := s.analyzer.Analyze(text)
	if err != nil {
		return models.Essay{}, fmt.Errorf("analyze essay: %w", err)
	}

	feedback, err := s.evaluate(ctx, text, result.Candidates)
	if err != nil {
		return models.Essay{}, err
	}

	completed, err := s.essays.CompleteProcessing(ctx, essay.ID, essay.Version, repository.ProcessingResult{
		Metrics:     result.Metrics,
		Feedback:    feedback,
		ProcessedAt: s.now().UTC(),
	})
	if err != nil {
		return models.Essay{}, fmt.Errorf("complete processing: %w", err)
	}

	if s.events != nil {
		event := NewEssayUpdatedEvent(completed, false, s.now())
		event.CorrelationID = logger.CorrelationID(ctx)
		if err := s.events.PublishEssayUpdated(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to publish essay update")
		}
	}

	log.Info().
		Int("word_count", result.Metrics.WordCount).
		Int("feedback_entries", len(feedback)).
		Msg("essay processed")

	return completed, nil
}

// ShouldProcess is the idempotency precondition of a delivery. Redelivered messages for an essay
// that already reached processed are acknowledged without touching it.
func ShouldProcess(essay models.Essay) bool {
	return models.CanTransition(essay.Status, models.EssayStatusProcessing)
}

// evaluate judges each candidate. A failed word degrades to a placeholder entry instead of failing the essay.
func (s *processingService) evaluate(ctx context.Context, text string, candidates []analysis.Candidate) ([]models.FeedbackEntry, error) {
	feedback := make([]models.FeedbackEntry, 0, len(candidates))
	if s.evaluator == nil {
		return feedback, nil
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate words: %w", err)
		}

		judgement, err := s.evaluator.EvaluateWord(ctx, ai.WordUsageInput{
			Word:     candidate.Word,
			Sentence: candidate.Sentence,
			Excerpt:  analysis.Excerpt(text, candidate.Sentence, excerptRadius),
		})
		if err != nil {
			log := logger.FromContext(ctx, s.logger)
			log.Warn().Err(err).Str("word", candidate.Word).Msg("word evaluation failed")
			feedback = append(feedback, models.FeedbackEntry{Word: candidate.Word, Correct: true, Comment: EvaluationUnavailable})
			continue
		}

		feedback = append(feedback, models.FeedbackEntry{
			Word:    candidate.Word,
			Correct: judgement.Correct,
			Comment: judgement.Comment,
		})
	}

	return feedback, nil
}
