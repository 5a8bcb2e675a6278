package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

var (
	// ErrVersionConflict indicates the essay changed since it was read.
	ErrVersionConflict = errors.New("essay was modified concurrently")
	// ErrInvalidTransition indicates the requested status change would move the lifecycle backwards.
	ErrInvalidTransition = errors.New("essay status transition not allowed")
)

// ProcessingResult is the analysis output persisted when an essay completes processing.
type ProcessingResult struct {
	Metrics     models.EssayMetrics
	Feedback    []models.FeedbackEntry
	ProcessedAt time.Time
}

// EssayRepository defines persistence operations for essays.
type EssayRepository interface {
	Create(ctx context.Context, essay *models.Essay) error
	GetByID(ctx context.Context, id string) (models.Essay, error)
	MarkProcessing(ctx context.Context, id string, now time.Time) (models.Essay, error)
	CompleteProcessing(ctx context.Context, id string, version int, result ProcessingResult) (models.Essay, error)
	ReplaceFeedback(ctx context.Context, id string, version int, feedback []models.FeedbackEntry, now time.Time) (models.Essay, error)
	ListProcessedByAssignment(ctx context.Context, teacherID, assignmentID string) ([]models.Essay, error)
	ListProcessedByStudent(ctx context.Context, teacherID, studentID string) ([]models.Essay, error)
}

type essayRepository struct {
	db *gorm.DB
}

// NewEssayRepository instantiates a GORM-backed repository.
func NewEssayRepository(db *gorm.DB) EssayRepository {
	return &essayRepository{db: db}
}

func (r *essayRepository) Create(ctx context.Context, essay *models.Essay) error {
	if essay.Version == 0 {
		essay.Version = 1
	}
	if essay.Feedback == nil {
		essay.Feedback = datatypes.NewJSONSlice([]models.FeedbackEntry{})
	}
	return r.db.WithContext(ctx).Create(essay).Error
}

func (r *essayRepository) GetByID(ctx context.Context, id string) (models.Essay, error) {
	var essay models.Essay
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&essay).Error; err != nil {
		return models.Essay{}, err
	}

	return essay, nil
}

func (r *essayRepository) MarkProcessing(ctx context.Context, id string, now time.Time) (models.Essay, error) {
	result := r.db.WithContext(ctx).Model(&models.Essay{}).
		Where("id = ? AND status IN ?", id, []string{models.EssayStatusAwaitingProcessing, models.EssayStatusProcessing}).
		Updates(map[string]interface{}{
			"status":              models.EssayStatusProcessing,
			"version":             gorm.Expr("version + 1"),
			"processing_attempts": gorm.Expr("processing_attempts + 1"),
			"updated_at":          now,
		})
	if result.Error != nil {
		return models.Essay{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Essay{}, r.missOrTransition(ctx, id)
	}

	return r.GetByID(ctx, id)
}

func (r *essayRepository) CompleteProcessing(ctx context.Context, id string, version int, outcome ProcessingResult) (models.Essay, error) {
	feedback := outcome.Feedback
	if feedback == nil {
		feedback = []models.FeedbackEntry{}
	}

	result := r.db.WithContext(ctx).Model(&models.Essay{}).
		Where("id = ? AND version = ? AND status = ?", id, version, models.EssayStatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.EssayStatusProcessed,
			"metrics":      datatypes.NewJSONType(outcome.Metrics),
			"feedback":     datatypes.NewJSONSlice(feedback),
			"version":      gorm.Expr("version + 1"),
			"processed_at": outcome.ProcessedAt,
			"updated_at":   outcome.ProcessedAt,
		})
	if result.Error != nil {
		return models.Essay{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Essay{}, r.missOrConflict(ctx, id)
	}

	return r.GetByID(ctx, id)
}

func (r *essayRepository) ReplaceFeedback(ctx context.Context, id string, version int, feedback []models.FeedbackEntry, now time.Time) (models.Essay, error) {
	if feedback == nil {
		feedback = []models.FeedbackEntry{}
	}

	result := r.db.WithContext(ctx).Model(&models.Essay{}).
		Where("id = ? AND version = ? AND status = ?", id, version, models.EssayStatusProcessed).
		Updates(map[string]interface{}{
			"feedback":   datatypes.NewJSONSlice(feedback),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return models.Essay{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Essay{}, r.missOrConflict(ctx, id)
	}

	return r.GetByID(ctx, id)
}

func (r *essayRepository) ListProcessedByAssignment(ctx context.Context, teacherID, assignmentID string) ([]models.Essay, error) {
	var essays []models.Essay
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND assignment_id = ? AND status = ?", teacherID, assignmentID, models.EssayStatusProcessed).
		Order("created_at ASC").
		Find(&essays).Error
	if err != nil {
		return nil, err
	}

	return essays, nil
}

func (r *essayRepository) ListProcessedByStudent(ctx context.Context, teacherID, studentID string) ([]models.Essay, error) {
	var essays []models.Essay
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND student_id = ? AND status = ?", teacherID, studentID, models.EssayStatusProcessed).
		Order("created_at ASC").
		Find(&essays).Error
	if err != nil {
		return nil, err
	}

	return essays, nil
}

func (r *essayRepository) missOrTransition(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (r *essayRepository) missOrConflict(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrVersionConflict
}
