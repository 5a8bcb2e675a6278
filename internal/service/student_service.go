package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
)

// ErrStudentNotFound indicates the requested student does not exist on the caller's roster.
var ErrStudentNotFound = errors.New("student not found")

// StudentService manages a teacher's roster.
type StudentService interface {
	List(ctx context.Context, teacherID string) ([]dto.StudentResponse, error)
	Get(ctx context.Context, teacherID, id string) (dto.StudentResponse, error)
	Create(ctx context.Context, teacherID string, payload dto.StudentCreateRequest) (dto.StudentResponse, error)
	Update(ctx context.Context, teacherID, id string, payload dto.StudentUpdateRequest) (dto.StudentResponse, error)
	Delete(ctx context.Context, teacherID, id string) error
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStudentService builds the roster service.
func NewStudentService(repo repository.StudentRepository, validate *validator.Validate, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "student_service").Logger(),
		now:       time.Now,
	}
}

func (s *studentService) List(ctx context.Context, teacherID string) ([]dto.StudentResponse, error) {
	students, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return dto.NewStudentResponseSlice(students), nil
}

func (s *studentService) Get(ctx context.Context, teacherID, id string) (dto.StudentResponse, error) {
	student, err := s.find(ctx, teacherID, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Create(ctx context.Context, teacherID string, payload dto.StudentCreateRequest) (dto.StudentResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		TeacherID:  teacherID,
		Name:       sanitizeText(s.sanitizer, payload.Name),
		GradeLevel: payload.GradeLevel,
		Notes:      sanitizeText(s.sanitizer, payload.Notes),
	}

	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Str("student_id", student.ID).Str("teacher_id", teacherID).Msg("student created")

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Update(ctx context.Context, teacherID, id string, payload dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if payload.Name != nil {
		trimmed := strings.TrimSpace(*payload.Name)
		payload.Name = &trimmed
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.find(ctx, teacherID, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if payload.Name != nil {
		student.Name = sanitizeText(s.sanitizer, *payload.Name)
	}
	if payload.GradeLevel != nil {
		student.GradeLevel = payload.GradeLevel
	}
	if payload.Notes != nil {
		student.Notes = sanitizeText(s.sanitizer, *payload.Notes)
	}
	student.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Str("student_id", student.ID).Msg("student updated")

	return dto.NewStudentResponse(student), nil
}

// Delete removes the student. Essays referencing it keep their student_id.
func (s *studentService) Delete(ctx context.Context, teacherID, id string) error {
	if err := s.repo.Delete(ctx, teacherID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	s.logger.Info().Str("student_id", id).Msg("student deleted")
	return nil
}

func (s *studentService) find(ctx context.Context, teacherID, id string) (models.Student, error) {
	student, err := s.repo.GetByID(ctx, teacherID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}

	return student, nil
}
