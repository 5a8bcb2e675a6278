package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
)

type essayFixture struct {
	db        *gorm.DB
	svc       EssayService
	store     *memoryObjectStore
	publisher *recordingPublisher
	essays    repository.EssayRepository
	students  repository.StudentRepository
}

func setupEssayService(t *testing.T) essayFixture {
	t.Helper()
	db := setupTestDB(t)
	essays := repository.NewEssayRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	students := repository.NewStudentRepository(db)
	store := newMemoryObjectStore()
	publisher := &recordingPublisher{}
	matcher := NewStudentMatcher(students, DefaultMatchThreshold, zerolog.Nop())

	svc := NewEssayService(essays, assignments, students, store, matcher, publisher, validator.New(), EssayServiceConfig{}, zerolog.Nop())
	return essayFixture{db: db, svc: svc, store: store, publisher: publisher, essays: essays, students: students}
}

func TestEssayServiceCreateStoresTextBeforeRecord(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()

	first, err := fx.svc.Create(ctx, "", dto.EssayCreateRequest{EssayText: "The quick brown fox."})
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusAwaitingProcessing, first.Status)
	require.Equal(t, models.EssayFileKey(first.EssayID), first.FileKey)

	second, err := fx.svc.Create(ctx, "", dto.EssayCreateRequest{EssayText: "Another essay entirely."})
	require.NoError(t, err)
	require.NotEqual(t, first.EssayID, second.EssayID)

	body, err := fx.store.Get(ctx, first.FileKey)
	require.NoError(t, err)
	require.Equal(t, "The quick brown fox.", string(body))

	essay, err := fx.svc.Get(ctx, first.EssayID)
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusAwaitingProcessing, essay.Status)
	require.Nil(t, essay.Metrics)
	require.Empty(t, essay.Feedback)
}

func TestEssayServiceRecordsCorrelationID(t *testing.T) {
	fx := setupEssayService(t)
	ctx := logger.WithCorrelationID(context.Background(), "req-submit")

	created, err := fx.svc.Create(ctx, "", dto.EssayCreateRequest{EssayText: "The quick brown fox."})
	require.NoError(t, err)

	stored, err := fx.essays.GetByID(context.Background(), created.EssayID)
	require.NoError(t, err)
	require.Equal(t, "req-submit", stored.CorrelationID)
	require.Equal(t, "req-submit", NewEssayUpdatedEvent(stored, false, stored.CreatedAt).CorrelationID)

	essay := processedEssay(t, fx.db, "teacher-1")
	overrideCtx := logger.WithCorrelationID(context.Background(), "req-override")
	_, err = fx.svc.Override(overrideCtx, "teacher-1", essay.ID, dto.EssayOverrideRequest{
		Feedback: []dto.FeedbackItem{{Word: "quick", Correct: true}},
	})
	require.NoError(t, err)

	events := fx.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, "req-override", events[0].CorrelationID)
}

func TestEssayServiceRejectsBlankText(t *testing.T) {
	fx := setupEssayService(t)

	_, err := fx.svc.Create(context.Background(), "", dto.EssayCreateRequest{EssayText: "  \n\t "})
	require.ErrorIs(t, err, ErrEssayTextRequired)

	var count int64
	require.NoError(t, fx.db.Model(&models.Essay{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEssayServiceStoreFailureCreatesNoRecord(t *testing.T) {
	fx := setupEssayService(t)
	fx.store.putErr = errors.New("bucket offline")

	_, err := fx.svc.Create(context.Background(), "", dto.EssayCreateRequest{EssayText: "Some text."})
	require.Error(t, err)

	var count int64
	require.NoError(t, fx.db.Model(&models.Essay{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEssayServicePresignedUpload(t *testing.T) {
	fx := setupEssayService(t)

	response, err := fx.svc.Create(context.Background(), "", dto.EssayCreateRequest{RequestPresignedURL: true})
	require.NoError(t, err)
	require.NotEmpty(t, response.PresignedURL)
	require.Equal(t, 3600, response.ExpiresIn)

	essay, err := fx.essays.GetByID(context.Background(), response.EssayID)
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusAwaitingProcessing, essay.Status)
}

func TestEssayServiceUploadRequiresPlainText(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	_, err := fx.svc.Upload(ctx, "", dto.EssayCreateRequest{}, png)
	require.ErrorIs(t, err, ErrUnsupportedEssayType)

	response, err := fx.svc.Upload(ctx, "", dto.EssayCreateRequest{}, []byte("A plain essay about rivers."))
	require.NoError(t, err)
	require.NotEmpty(t, response.EssayID)

	response, err = fx.svc.Upload(ctx, "", dto.EssayCreateRequest{}, []byte("rivers,lakes,seas\nmountains,hills,plains\n"))
	require.NoError(t, err)
	require.NotEmpty(t, response.EssayID)
}

func TestEssayServiceAssignmentScopedToTeacher(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()

	assignment := models.Assignment{TeacherID: "teacher-1", Name: "Rivers"}
	require.NoError(t, fx.db.Create(&assignment).Error)

	_, err := fx.svc.Create(ctx, "teacher-2", dto.EssayCreateRequest{EssayText: "Text.", AssignmentID: strPtr(assignment.ID)})
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, err = fx.svc.Create(ctx, "", dto.EssayCreateRequest{EssayText: "Text.", AssignmentID: strPtr(assignment.ID)})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestEssayServiceCreateUploadURL(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()

	assignment := models.Assignment{TeacherID: "teacher-1", Name: "Rivers"}
	require.NoError(t, fx.db.Create(&assignment).Error)

	response, err := fx.svc.CreateUploadURL(ctx, "teacher-1", assignment.ID, dto.UploadURLRequest{FileName: "jane-doe.txt"})
	require.NoError(t, err)
	require.Equal(t, models.EssayFileKey(response.EssayID), response.FileKey)
	require.Equal(t, "https://objects.test/"+response.FileKey+"?ttl=3600", response.PresignedURL)
	require.Equal(t, 3600, response.ExpiresIn)

	essay, err := fx.essays.GetByID(ctx, response.EssayID)
	require.NoError(t, err)
	require.Equal(t, models.EssayStatusAwaitingProcessing, essay.Status)
	require.Equal(t, assignment.ID, derefString(essay.AssignmentID))
	require.True(t, essay.OwnedBy("teacher-1"))

	_, err = fx.svc.CreateUploadURL(ctx, "teacher-2", assignment.ID, dto.UploadURLRequest{FileName: "jane-doe.txt"})
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, err = fx.svc.CreateUploadURL(ctx, "teacher-1", "not-an-assignment", dto.UploadURLRequest{FileName: "a.txt"})
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, err = fx.svc.CreateUploadURL(ctx, "teacher-1", assignment.ID, dto.UploadURLRequest{})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestEssayServiceMatchesStudentByName(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()

	assignment := models.Assignment{TeacherID: "teacher-1", Name: "Rivers"}
	require.NoError(t, fx.db.Create(&assignment).Error)
	existing := models.Student{TeacherID: "teacher-1", Name: "Maria Lopez"}
	require.NoError(t, fx.db.Create(&existing).Error)

	response, err := fx.svc.Create(ctx, "teacher-1", dto.EssayCreateRequest{
		EssayText:    "Name: Maria Lopes\nRivers carve valleys over time.",
		AssignmentID: strPtr(assignment.ID),
	})
	require.NoError(t, err)

	essay, err := fx.essays.GetByID(ctx, response.EssayID)
	require.NoError(t, err)
	require.NotNil(t, essay.StudentID)
	require.Equal(t, existing.ID, *essay.StudentID)
	require.NotNil(t, essay.TeacherID)
	require.Equal(t, "teacher-1", *essay.TeacherID)

	response, err = fx.svc.Create(ctx, "teacher-1", dto.EssayCreateRequest{
		EssayText:    "By Jonathan Price\nMountains rise slowly.",
		AssignmentID: strPtr(assignment.ID),
	})
	require.NoError(t, err)

	essay, err = fx.essays.GetByID(ctx, response.EssayID)
	require.NoError(t, err)
	require.NotNil(t, essay.StudentID)

	roster, err := fx.students.ListByTeacher(ctx, "teacher-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
}

func processedEssay(t *testing.T, db *gorm.DB, teacherID string) models.Essay {
	t.Helper()
	essay := models.Essay{
		ID:        "8d6f3c4e-0000-4000-8000-000000000001",
		TeacherID: strPtr(teacherID),
		FileKey:   models.EssayFileKey("8d6f3c4e-0000-4000-8000-000000000001"),
		Status:    models.EssayStatusAwaitingProcessing,
	}
	repo := repository.NewEssayRepository(db)
	require.NoError(t, repo.Create(context.Background(), &essay))

	claimed, err := repo.MarkProcessing(context.Background(), essay.ID, essay.CreatedAt)
	require.NoError(t, err)
	done, err := repo.CompleteProcessing(context.Background(), essay.ID, claimed.Version, repository.ProcessingResult{
		Metrics:     models.EssayMetrics{WordCount: 4, UniqueWords: 4, TypeTokenRatio: 1},
		Feedback:    []models.FeedbackEntry{{Word: "quick", Correct: true, Comment: "fine"}},
		ProcessedAt: essay.CreatedAt,
	})
	require.NoError(t, err)
	return done
}

func TestEssayServiceOverrideRoundTrip(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()
	essay := processedEssay(t, fx.db, "teacher-1")

	sent := []dto.FeedbackItem{
		{Word: " quick ", Correct: false, Comment: "  padded comment  "},
		{Word: "brown", Correct: false, Comment: "Prefer <adj> + noun here"},
		{Word: "fox", Correct: true, Comment: "use <b>bold</b> & keep it"},
	}
	response, err := fx.svc.Override(ctx, "teacher-1", essay.ID, dto.EssayOverrideRequest{Feedback: sent})
	require.NoError(t, err)
	require.Equal(t, essay.ID, response.EssayID)
	require.Equal(t, OverrideAcceptedMessage, response.Message)

	fetched, err := fx.svc.Get(ctx, essay.ID)
	require.NoError(t, err)
	require.Equal(t, sent, fetched.Feedback)

	_, err = fx.svc.Override(ctx, "teacher-1", essay.ID, dto.EssayOverrideRequest{
		Feedback: []dto.FeedbackItem{{Word: "quick", Correct: true, Comment: "It's fine after all"}},
	})
	require.NoError(t, err)

	fetched, err = fx.svc.Get(ctx, essay.ID)
	require.NoError(t, err)
	require.Equal(t, "It's fine after all", fetched.Feedback[0].Comment)

	events := fx.publisher.Events()
	require.Len(t, events, 2)
	require.True(t, events[0].Override)
	require.Equal(t, "teacher-1", events[0].TeacherID)
}

func TestEssayServiceOverrideErrors(t *testing.T) {
	fx := setupEssayService(t)
	ctx := context.Background()
	payload := dto.EssayOverrideRequest{Feedback: []dto.FeedbackItem{{Word: "quick", Correct: true}}}

	_, err := fx.svc.Override(ctx, "teacher-1", "missing", payload)
	require.ErrorIs(t, err, ErrEssayNotFound)

	pending, err := fx.svc.Create(ctx, "teacher-1", dto.EssayCreateRequest{EssayText: "Pending essay."})
	require.NoError(t, err)
	_, err = fx.svc.Override(ctx, "teacher-1", pending.EssayID, payload)
	require.ErrorIs(t, err, ErrEssayNotProcessed)

	essay := processedEssay(t, fx.db, "teacher-1")
	_, err = fx.svc.Override(ctx, "teacher-2", essay.ID, payload)
	require.ErrorIs(t, err, ErrEssayForbidden)

	_, err = fx.svc.Override(ctx, "teacher-1", essay.ID, dto.EssayOverrideRequest{})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestSanitizeTextKeepsPlainTextVerbatim(t *testing.T) {
	policy := bluemonday.StrictPolicy()

	require.Equal(t, "Tom & Jerry's \"show\"", sanitizeText(policy, "Tom & Jerry's \"show\""))
	require.Equal(t, "alert", sanitizeText(policy, "<i>alert</i>"))
	require.Equal(t, "", sanitizeText(policy, "<script>alert(1)</script>"))
}
