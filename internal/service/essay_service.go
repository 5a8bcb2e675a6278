package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/observability"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
)

var (
	// ErrEssayNotFound indicates the requested essay does not exist.
	ErrEssayNotFound = errors.New("essay not found")
	// ErrEssayTextRequired indicates an upload without any essay text.
	ErrEssayTextRequired = errors.New("essay text is required")
	// ErrEssayNotProcessed indicates feedback cannot be changed before analysis completes.
	ErrEssayNotProcessed = errors.New("essay has not been processed yet")
	// ErrEssayConflict indicates the essay changed while the request was in flight.
	ErrEssayConflict = errors.New("essay was modified concurrently, retry the request")
	// ErrEssayForbidden indicates the caller does not own the essay.
	ErrEssayForbidden = errors.New("essay belongs to another teacher")
	// ErrUnsupportedEssayType indicates an uploaded file that is not plain text.
	ErrUnsupportedEssayType = errors.New("essay upload must be a plain text file")
)

// OverrideAcceptedMessage acknowledges an override. Class and student metrics catch up asynchronously.
const OverrideAcceptedMessage = "Feedback override successful. Metrics will be recomputed."

// Upload sources recorded on the uploaded-essays counter.
const (
	SourceJSON      = "json"
	SourceFile      = "file"
	SourcePresigned = "presigned"
)

// ObjectStore persists raw essay text.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// EssayService exposes essay submission, retrieval and feedback override.
type EssayService interface {
	Create(ctx context.Context, teacherID string, payload dto.EssayCreateRequest) (dto.EssayCreateResponse, error)
	Upload(ctx context.Context, teacherID string, payload dto.EssayCreateRequest, content []byte) (dto.EssayCreateResponse, error)
	CreateUploadURL(ctx context.Context, teacherID, assignmentID string, payload dto.UploadURLRequest) (dto.UploadURLResponse, error)
	Get(ctx context.Context, id string) (dto.EssayResponse, error)
	Override(ctx context.Context, teacherID, id string, payload dto.EssayOverrideRequest) (dto.EssayOverrideResponse, error)
}

// EssayServiceConfig tunes optional behaviour of the essay service.
type EssayServiceConfig struct {
	PresignTTL time.Duration
}

type essayService struct {
	essays      repository.EssayRepository
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	store       ObjectStore
	matcher     StudentMatcher
	events      EssayEventPublisher
	validator   *validator.Validate
	presignTTL  time.Duration
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEssayService wires the essay use cases. The matcher and events publisher may be nil.
func NewEssayService(
	essays repository.EssayRepository,
	assignments repository.AssignmentRepository,
	students repository.StudentRepository,
	store ObjectStore,
	matcher StudentMatcher,
	events EssayEventPublisher,
	validate *validator.Validate,
	cfg EssayServiceConfig,
	logger zerolog.Logger,
) EssayService {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &essayService{
		essays:      essays,
		assignments: assignments,
		students:    students,
		store:       store,
		matcher:     matcher,
		events:      events,
		validator:   validate,
		presignTTL:  ttl,
		tracer:      otel.Tracer("github.com/lousydropout/vocab-recommendation-sub000/internal/service/essay"),
		logger:      logger.With().Str("component", "essay_service").Logger(),
		now:         time.Now,
	}
}

func (s *essayService) Create(ctx context.Context, teacherID string, payload dto.EssayCreateRequest) (dto.EssayCreateResponse, error) {
	return s.create(ctx, teacherID, payload, SourceJSON)
}

func (s *essayService) Upload(ctx context.Context, teacherID string, payload dto.EssayCreateRequest, content []byte) (dto.EssayCreateResponse, error) {
	if len(content) > 0 && !isPlainText(content) {
		return dto.EssayCreateResponse{}, ErrUnsupportedEssayType
	}

	payload.EssayText = string(content)
	payload.RequestPresignedURL = false
	return s.create(ctx, teacherID, payload, SourceFile)
}

// CreateUploadURL records an essay under one of the teacher's assignments and presigns its upload.
// The object key is derived from the essay id so the trigger picks the upload up; file_name is only logged.
func (s *essayService) CreateUploadURL(parent context.Context, teacherID, assignmentID string, payload dto.UploadURLRequest) (dto.UploadURLResponse, error) {
	ctx, span := s.tracer.Start(parent, "essay.upload_url", trace.WithAttributes(attribute.String("assignment_id", assignmentID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.UploadURLResponse{}, err
	}

	owned, _, err := s.resolveOwnership(ctx, teacherID, dto.EssayCreateRequest{AssignmentID: &assignmentID}, "")
	if err != nil {
		return dto.UploadURLResponse{}, err
	}

	essay := models.Essay{
		ID:            uuid.NewString(),
		AssignmentID:  owned,
		TeacherID:     &teacherID,
		Status:        models.EssayStatusAwaitingProcessing,
		CorrelationID: logger.CorrelationID(ctx),
	}
	essay.FileKey = models.EssayFileKey(essay.ID)

	created, err := s.createPresigned(ctx, essay)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.UploadURLResponse{}, err
	}

	log := logger.FromContext(ctx, s.logger)
	log.Info().
		Str("essay_id", created.EssayID).
		Str("assignment_id", assignmentID).
		Str("file_name", payload.FileName).
		Msg("assignment upload url issued")

	return dto.UploadURLResponse{
		EssayID:      created.EssayID,
		PresignedURL: created.PresignedURL,
		ExpiresIn:    created.ExpiresIn,
		FileKey:      created.FileKey,
	}, nil
}

func (s *essayService) create(parent context.Context, teacherID string, payload dto.EssayCreateRequest, source string) (dto.EssayCreateResponse, error) {
	ctx, span := s.tracer.Start(parent, "essay.create", trace.WithAttributes(attribute.String("source", source)))
	defer span.End()

	response, err := s.createEssay(ctx, teacherID, payload, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.EssayCreateResponse{}, err
	}

	span.SetAttributes(attribute.String("essay_id", response.EssayID))
	return response, nil
}

func (s *essayService) createEssay(ctx context.Context, teacherID string, payload dto.EssayCreateRequest, source string) (dto.EssayCreateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EssayCreateResponse{}, err
	}

	text := strings.TrimSpace(payload.EssayText)
	presignOnly := text == "" && payload.RequestPresignedURL
	if text == "" && !presignOnly {
		return dto.EssayCreateResponse{}, ErrEssayTextRequired
	}

	assignmentID, studentID, err := s.resolveOwnership(ctx, teacherID, payload, text)
	if err != nil {
		return dto.EssayCreateResponse{}, err
	}

	essay := models.Essay{
		ID:            uuid.NewString(),
		AssignmentID:  assignmentID,
		StudentID:     studentID,
		Status:        models.EssayStatusAwaitingProcessing,
		CorrelationID: logger.CorrelationID(ctx),
	}
	essay.FileKey = models.EssayFileKey(essay.ID)
	if teacherID != "" {
		owner := teacherID
		essay.TeacherID = &owner
	}

	if presignOnly {
		return s.createPresigned(ctx, essay)
	}

	if err := s.store.Put(ctx, essay.FileKey, []byte(payload.EssayText)); err != nil {
		return dto.EssayCreateResponse{}, fmt.Errorf("store essay text: %w", err)
	}

	if err := s.essays.Create(ctx, &essay); err != nil {
		return dto.EssayCreateResponse{}, fmt.Errorf("create essay record: %w", err)
	}

	observability.EssaysUploaded().WithLabelValues(source).Inc()
	log := logger.FromContext(ctx, s.logger)
	log.Info().Str("essay_id", essay.ID).Str("source", source).Bool("authenticated", teacherID != "").Msg("essay accepted")

	return dto.EssayCreateResponse{
		EssayID: essay.ID,
		Status:  essay.Status,
		FileKey: essay.FileKey,
	}, nil
}

// createPresigned records the essay before the client writes the text directly to the object store.
func (s *essayService) createPresigned(ctx context.Context, essay models.Essay) (dto.EssayCreateResponse, error) {
	if err := s.essays.Create(ctx, &essay); err != nil {
		return dto.EssayCreateResponse{}, fmt.Errorf("create essay record: %w", err)
	}

	url, err := s.store.PresignPut(ctx, essay.FileKey, s.presignTTL)
	if err != nil {
		return dto.EssayCreateResponse{}, fmt.Errorf("presign essay upload: %w", err)
	}

	observability.EssaysUploaded().WithLabelValues(SourcePresigned).Inc()
	log := logger.FromContext(ctx, s.logger)
	log.Info().Str("essay_id", essay.ID).Msg("presigned essay upload issued")

	return dto.EssayCreateResponse{
		EssayID:      essay.ID,
		Status:       essay.Status,
		FileKey:      essay.FileKey,
		PresignedURL: url,
		ExpiresIn:    int(s.presignTTL.Seconds()),
	}, nil
}

// resolveOwnership checks referenced roster entries belong to the caller and matches a student by name when needed.
func (s *essayService) resolveOwnership(ctx context.Context, teacherID string, payload dto.EssayCreateRequest, text string) (*string, *string, error) {
	var assignmentID, studentID *string

	if payload.AssignmentID != nil {
		if teacherID == "" {
			return nil, nil, ErrAssignmentNotFound
		}
		if _, err := s.assignments.GetByID(ctx, teacherID, *payload.AssignmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrAssignmentNotFound
			}
			return nil, nil, err
		}
		id := *payload.AssignmentID
		assignmentID = &id
	}

	if payload.StudentID != nil {
		if teacherID == "" {
			return nil, nil, ErrStudentNotFound
		}
		if _, err := s.students.GetByID(ctx, teacherID, *payload.StudentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrStudentNotFound
			}
			return nil, nil, err
		}
		id := *payload.StudentID
		studentID = &id
	}

	if assignmentID != nil && studentID == nil && s.matcher != nil && text != "" {
		student, matched, err := s.matcher.Resolve(ctx, teacherID, text)
		if err != nil {
			return nil, nil, fmt.Errorf("match student: %w", err)
		}
		if matched {
			id := student.ID
			studentID = &id
		}
	}

	return assignmentID, studentID, nil
}

func (s *essayService) Get(ctx context.Context, id string) (dto.EssayResponse, error) {
	essay, err := s.essays.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EssayResponse{}, ErrEssayNotFound
		}
		return dto.EssayResponse{}, err
	}

	return dto.NewEssayResponse(essay), nil
}

func (s *essayService) Override(ctx context.Context, teacherID, id string, payload dto.EssayOverrideRequest) (dto.EssayOverrideResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EssayOverrideResponse{}, err
	}

	essay, err := s.essays.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EssayOverrideResponse{}, ErrEssayNotFound
		}
		return dto.EssayOverrideResponse{}, err
	}

	if !essay.OwnedBy(teacherID) {
		return dto.EssayOverrideResponse{}, ErrEssayForbidden
	}
	if !essay.IsProcessed() {
		return dto.EssayOverrideResponse{}, ErrEssayNotProcessed
	}

	// Stored exactly as sent; the JSON encoder escapes markup on the way out.
	feedback := make([]models.FeedbackEntry, 0, len(payload.Feedback))
	for _, item := range payload.Feedback {
		feedback = append(feedback, models.FeedbackEntry{
			Word:    item.Word,
			Correct: item.Correct,
			Comment: item.Comment,
		})
	}

	updated, err := s.essays.ReplaceFeedback(ctx, essay.ID, essay.Version, feedback, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return dto.EssayOverrideResponse{}, ErrEssayConflict
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.EssayOverrideResponse{}, ErrEssayNotFound
		default:
			return dto.EssayOverrideResponse{}, err
		}
	}

	s.publish(ctx, updated, true)
	log := logger.FromContext(ctx, s.logger)
	log.Info().Str("essay_id", essay.ID).Int("entries", len(feedback)).Msg("essay feedback overridden")

	return dto.EssayOverrideResponse{
		EssayID: essay.ID,
		Message: OverrideAcceptedMessage,
	}, nil
}

func (s *essayService) publish(ctx context.Context, essay models.Essay, override bool) {
	if s.events == nil {
		return
	}

	event := NewEssayUpdatedEvent(essay, override, s.now())
	if id := logger.CorrelationID(ctx); id != "" {
		event.CorrelationID = id
	}
	if err := s.events.PublishEssayUpdated(ctx, event); err != nil {
		log := logger.FromContext(ctx, s.logger)
		log.Warn().Err(err).Str("essay_id", essay.ID).Msg("failed to publish essay update")
	}
}

// NewEssayUpdatedEvent describes the current state of an essay as an update event.
func NewEssayUpdatedEvent(essay models.Essay, override bool, now time.Time) EssayUpdatedEvent {
	return EssayUpdatedEvent{
		EssayID:       essay.ID,
		TeacherID:     derefString(essay.TeacherID),
		AssignmentID:  derefString(essay.AssignmentID),
		StudentID:     derefString(essay.StudentID),
		Status:        essay.Status,
		Version:       essay.Version,
		Override:      override,
		CorrelationID: essay.CorrelationID,
		OccurredAt:    now.UTC(),
	}
}

// isPlainText accepts text/plain and the formats detected as its children, such as csv.
func isPlainText(content []byte) bool {
	for detected := mimetype.Detect(content); detected != nil; detected = detected.Parent() {
		if detected.Is("text/plain") {
			return true
		}
	}
	return false
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
