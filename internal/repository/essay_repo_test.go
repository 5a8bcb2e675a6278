package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

func createEssay(t *testing.T, repo EssayRepository, id string, mutate func(*models.Essay)) models.Essay {
	t.Helper()
	essay := models.Essay{
		ID:      id,
		FileKey: models.EssayFileKey(id),
		Status:  models.EssayStatusAwaitingProcessing,
	}
	if mutate != nil {
		mutate(&essay)
	}
	require.NoError(t, repo.Create(context.Background(), &essay))
	return essay
}

func TestEssayRepositoryCreateAndGet(t *testing.T) {
	repo := NewEssayRepository(setupTestDB(t))
	created := createEssay(t, repo, "essay-1", nil)
	require.Equal(t, 1, created.Version)

	loaded, err := repo.GetByID(context.Background(), "essay-1")
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusAwaitingProcessing, loaded.Status)
	require.Equal(t, "essays/essay-1.txt", loaded.FileKey)
	require.NotNil(t, loaded.Feedback)
	require.Empty(t, loaded.Feedback)

	_, err = repo.GetByID(context.Background(), "missing")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestEssayRepositoryLifecycleMovesForward(t *testing.T) {
	repo := NewEssayRepository(setupTestDB(t))
	ctx := context.Background()
	createEssay(t, repo, "essay-1", nil)

	processing, err := repo.MarkProcessing(ctx, "essay-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusProcessing, processing.Status)
	require.Equal(t, 1, processing.ProcessingAttempts)
	require.Equal(t, 2, processing.Version)

	again, err := repo.MarkProcessing(ctx, "essay-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, again.ProcessingAttempts)

	processedAt := time.Now().UTC()
	done, err := repo.CompleteProcessing(ctx, "essay-1", again.Version, ProcessingResult{
		Metrics:     models.EssayMetrics{WordCount: 4, UniqueWords: 4, TypeTokenRatio: 1},
		Feedback:    []models.FeedbackEntry{{Word: "quick", Correct: true, Comment: "fine"}},
		ProcessedAt: processedAt,
	})
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusProcessed, done.Status)
	require.Equal(t, 4, done.Metrics.Data().WordCount)
	require.Len(t, done.Feedback, 1)
	require.NotNil(t, done.ProcessedAt)

	_, err = repo.MarkProcessing(ctx, "essay-1", time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repo.MarkProcessing(ctx, "missing", time.Now())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEssayRepositoryCompleteRejectsStaleVersion(t *testing.T) {
	repo := NewEssayRepository(setupTestDB(t))
	ctx := context.Background()
	createEssay(t, repo, "essay-1", nil)

	processing, err := repo.MarkProcessing(ctx, "essay-1", time.Now())
	require.NoError(t, err)

	_, err = repo.CompleteProcessing(ctx, "essay-1", processing.Version-1, ProcessingResult{ProcessedAt: time.Now()})
	require.ErrorIs(t, err, ErrVersionConflict)

	loaded, err := repo.GetByID(ctx, "essay-1")
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusProcessing, loaded.Status)
}

func TestEssayRepositoryReplaceFeedback(t *testing.T) {
	repo := NewEssayRepository(setupTestDB(t))
	ctx := context.Background()
	createEssay(t, repo, "essay-1", nil)

	processing, err := repo.MarkProcessing(ctx, "essay-1", time.Now())
	require.NoError(t, err)

	_, err = repo.ReplaceFeedback(ctx, "essay-1", processing.Version, nil, time.Now())
	require.ErrorIs(t, err, ErrVersionConflict, "feedback cannot be replaced before processing completes")

	done, err := repo.CompleteProcessing(ctx, "essay-1", processing.Version, ProcessingResult{ProcessedAt: time.Now()})
	require.NoError(t, err)

	override := []models.FeedbackEntry{{Word: "ubiquitous", Correct: false, Comment: "wrong sense"}}
	updated, err := repo.ReplaceFeedback(ctx, "essay-1", done.Version, override, time.Now())
	require.NoError(t, err)
	require.Equal(t, override, []models.FeedbackEntry(updated.Feedback))
	require.Equal(t, done.Version+1, updated.Version)

	_, err = repo.ReplaceFeedback(ctx, "essay-1", done.Version, override, time.Now())
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestEssayRepositoryListProcessedScopesByOwner(t *testing.T) {
	repo := NewEssayRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		createEssay(t, repo, id, func(e *models.Essay) {
			e.TeacherID = strPtr("teacher-1")
			e.AssignmentID = strPtr("assignment-1")
			e.StudentID = strPtr("student-1")
		})
	}
	createEssay(t, repo, "other", func(e *models.Essay) {
		e.TeacherID = strPtr("teacher-2")
		e.AssignmentID = strPtr("assignment-1")
	})

	for _, id := range []string{"a", "b", "other"} {
		processing, err := repo.MarkProcessing(ctx, id, time.Now())
		require.NoError(t, err)
		_, err = repo.CompleteProcessing(ctx, id, processing.Version, ProcessingResult{ProcessedAt: time.Now()})
		require.NoError(t, err)
	}

	byAssignment, err := repo.ListProcessedByAssignment(ctx, "teacher-1", "assignment-1")
	require.NoError(t, err)
	require.Len(t, byAssignment, 2)

	byStudent, err := repo.ListProcessedByStudent(ctx, "teacher-1", "student-1")
	require.NoError(t, err)
	require.Len(t, byStudent, 2)

	none, err := repo.ListProcessedByStudent(ctx, "teacher-2", "student-1")
	require.NoError(t, err)
	require.Empty(t, none)
}
