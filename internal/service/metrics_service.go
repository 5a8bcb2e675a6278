package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/analysis"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/observability"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
)

// Student vocabulary trends.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

const (
	trendWindow        = 3
	trendImprovingRate = 1.05
	trendDecliningRate = 0.95
)

// MetricsService aggregates processed essays into class and student statistics.
type MetricsService interface {
	ClassMetrics(ctx context.Context, teacherID, assignmentID string) (dto.ClassMetricsResponse, error)
	StudentMetrics(ctx context.Context, teacherID, studentID string) (dto.StudentMetricsResponse, error)
	Invalidate(ctx context.Context, event EssayUpdatedEvent) error
}

type metricsService struct {
	essays      repository.EssayRepository
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewMetricsService builds the aggregation service. A nil cache disables caching.
func NewMetricsService(essays repository.EssayRepository, assignments repository.AssignmentRepository, students repository.StudentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) MetricsService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &metricsService{
		essays:      essays,
		assignments: assignments,
		students:    students,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "metrics_service").Logger(),
	}
}

// ClassMetricsKey is the cache key of an assignment aggregate.
func ClassMetricsKey(teacherID, assignmentID string) string {
	return fmt.Sprintf("metrics:class:%s:%s", teacherID, assignmentID)
}

// StudentMetricsKey is the cache key of a student aggregate.
func StudentMetricsKey(teacherID, studentID string) string {
	return fmt.Sprintf("metrics:student:%s:%s", teacherID, studentID)
}

func (s *metricsService) ClassMetrics(ctx context.Context, teacherID, assignmentID string) (dto.ClassMetricsResponse, error) {
	if _, err := s.assignments.GetByID(ctx, teacherID, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ClassMetricsResponse{}, ErrAssignmentNotFound
		}
		return dto.ClassMetricsResponse{}, err
	}

	key := ClassMetricsKey(teacherID, assignmentID)
	var response dto.ClassMetricsResponse
	if s.readCache(ctx, key, &response) {
		return response, nil
	}

	essays, err := s.essays.ListProcessedByAssignment(ctx, teacherID, assignmentID)
	if err != nil {
		return dto.ClassMetricsResponse{}, err
	}

	response = dto.ClassMetricsResponse{
		AssignmentID: assignmentID,
		Stats:        ComputeClassStats(essays),
		UpdatedAt:    latestProcessedAt(essays),
	}

	s.writeCache(ctx, key, response)
	return response, nil
}

func (s *metricsService) StudentMetrics(ctx context.Context, teacherID, studentID string) (dto.StudentMetricsResponse, error) {
	if _, err := s.students.GetByID(ctx, teacherID, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentMetricsResponse{}, ErrStudentNotFound
		}
		return dto.StudentMetricsResponse{}, err
	}

	key := StudentMetricsKey(teacherID, studentID)
	var response dto.StudentMetricsResponse
	if s.readCache(ctx, key, &response) {
		return response, nil
	}

	essays, err := s.essays.ListProcessedByStudent(ctx, teacherID, studentID)
	if err != nil {
		return dto.StudentMetricsResponse{}, err
	}

	response = dto.StudentMetricsResponse{
		StudentID: studentID,
		Stats:     ComputeStudentStats(essays),
		UpdatedAt: latestProcessedAt(essays),
	}

	s.writeCache(ctx, key, response)
	return response, nil
}

// Invalidate drops the cached aggregates an essay update may have changed.
func (s *metricsService) Invalidate(ctx context.Context, event EssayUpdatedEvent) error {
	if s.cache == nil || event.TeacherID == "" {
		return nil
	}

	keys := make([]string, 0, 2)
	if event.AssignmentID != "" {
		keys = append(keys, ClassMetricsKey(event.TeacherID, event.AssignmentID))
	}
	if event.StudentID != "" {
		keys = append(keys, StudentMetricsKey(event.TeacherID, event.StudentID))
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate metrics cache: %w", err)
	}

	s.logger.Debug().Str("essay_id", event.EssayID).Strs("keys", keys).Msg("metrics cache invalidated")
	return nil
}

func (s *metricsService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			observability.MetricsCache().WithLabelValues("miss").Inc()
		} else {
			observability.MetricsCache().WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read metrics cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), target); err != nil {
		observability.MetricsCache().WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt metrics cache entry")
		return false
	}

	observability.MetricsCache().WithLabelValues("hit").Inc()
	return true
}

func (s *metricsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store metrics cache")
	}
}

// ComputeClassStats aggregates the processed essays of one assignment.
func ComputeClassStats(essays []models.Essay) dto.ClassStats {
	stats := dto.ClassStats{EssayCount: len(essays)}
	if len(essays) == 0 {
		return stats
	}

	var ttr, rank float64
	for _, essay := range essays {
		metrics := essay.Metrics.Data()
		ttr += metrics.TypeTokenRatio
		rank += metrics.AvgWordFreqRank

		for _, entry := range essay.Feedback {
			if entry.Correct {
				stats.Correctness.Correct++
			} else {
				stats.Correctness.Incorrect++
			}
		}
	}

	count := float64(len(essays))
	stats.AvgTTR = analysis.Round(ttr/count, 3)
	stats.AvgFreqRank = analysis.Round(rank/count, 1)
	return stats
}

// ComputeStudentStats aggregates a student's processed essays, which must be ordered oldest first.
func ComputeStudentStats(essays []models.Essay) dto.StudentStats {
	stats := dto.StudentStats{TotalEssays: len(essays), Trend: TrendStable}
	if len(essays) == 0 {
		return stats
	}

	ttrs := make([]float64, 0, len(essays))
	var ttr, words, unique, rank float64
	var last time.Time
	for _, essay := range essays {
		metrics := essay.Metrics.Data()
		ttrs = append(ttrs, metrics.TypeTokenRatio)
		ttr += metrics.TypeTokenRatio
		words += float64(metrics.WordCount)
		unique += float64(metrics.UniqueWords)
		rank += metrics.AvgWordFreqRank
		if essay.CreatedAt.After(last) {
			last = essay.CreatedAt
		}
	}

	count := float64(len(essays))
	stats.AvgTTR = analysis.Round(ttr/count, 3)
	stats.AvgWordCount = analysis.Round(words/count, 1)
	stats.AvgUniqueWords = analysis.Round(unique/count, 1)
	stats.AvgFreqRank = analysis.Round(rank/count, 1)
	stats.Trend = Trend(ttrs)

	lastDate := last.UTC().Format(time.RFC3339)
	stats.LastEssayDate = &lastDate
	return stats
}

// Trend compares the mean of the last three ratios with the three before them.
func Trend(ttrs []float64) string {
	if len(ttrs) < 2*trendWindow {
		return TrendStable
	}

	recent := mean(ttrs[len(ttrs)-trendWindow:])
	previous := mean(ttrs[len(ttrs)-2*trendWindow : len(ttrs)-trendWindow])

	switch {
	case recent > previous*trendImprovingRate:
		return TrendImproving
	case recent < previous*trendDecliningRate:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

func latestProcessedAt(essays []models.Essay) string {
	var latest time.Time
	for _, essay := range essays {
		if essay.ProcessedAt != nil && essay.ProcessedAt.After(latest) {
			latest = *essay.ProcessedAt
		}
	}
	if latest.IsZero() {
		return ""
	}
	return latest.UTC().Format(time.RFC3339)
}
