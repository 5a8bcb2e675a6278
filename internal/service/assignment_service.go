package service

import (
	"context"
	"errors"
	"html"
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

// ErrAssignmentNotFound indicates the requested assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// AssignmentService exposes assignment domain use cases scoped to a teacher.
type AssignmentService interface {
	List(ctx context.Context, teacherID string) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, teacherID, id string) (dto.AssignmentResponse, error)
	Create(ctx context.Context, teacherID string, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Update(ctx context.Context, teacherID, id string, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, teacherID string) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, teacherID, id string) (dto.AssignmentResponse, error) {
	assignment, err := s.find(ctx, teacherID, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, teacherID string, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		TeacherID:   teacherID,
		Name:        payload.Name,
		Description: sanitizeText(s.sanitizer, payload.Description),
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Str("assignment_id", assignment.ID).Str("teacher_id", teacherID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, teacherID, id string, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if payload.Name != nil {
		trimmed := strings.TrimSpace(*payload.Name)
		payload.Name = &trimmed
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.find(ctx, teacherID, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Name != nil {
		assignment.Name = *payload.Name
	}
	if payload.Description != nil {
		assignment.Description = sanitizeText(s.sanitizer, *payload.Description)
	}
	assignment.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Str("assignment_id", assignment.ID).Msg("assignment updated")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) find(ctx context.Context, teacherID, id string) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, teacherID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	return assignment, nil
}

// sanitizeText strips markup from roster fields. Plain text comes back unchanged rather than entity-escaped.
func sanitizeText(policy *bluemonday.Policy, value string) string {
	value = strings.TrimSpace(value)
	cleaned := policy.Sanitize(value)
	if html.UnescapeString(cleaned) == value {
		return value
	}
	return strings.TrimSpace(cleaned)
}
