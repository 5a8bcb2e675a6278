package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
)

// ErrTeacherIdentityRequired indicates a token without a usable subject.
var ErrTeacherIdentityRequired = errors.New("teacher identity is required")

// TeacherService resolves the teacher record behind a bearer token.
type TeacherService interface {
	Ensure(ctx context.Context, teacherID, email, name string) (dto.AuthHealthResponse, error)
}

type teacherService struct {
	repo   repository.TeacherRepository
	logger zerolog.Logger
}

// NewTeacherService builds the teacher service.
func NewTeacherService(repo repository.TeacherRepository, logger zerolog.Logger) TeacherService {
	return &teacherService{
		repo:   repo,
		logger: logger.With().Str("component", "teacher_service").Logger(),
	}
}

// Ensure returns the teacher, creating it from the token claims on first sight.
func (s *teacherService) Ensure(ctx context.Context, teacherID, email, name string) (dto.AuthHealthResponse, error) {
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return dto.AuthHealthResponse{}, ErrTeacherIdentityRequired
	}

	teacher := models.Teacher{ID: teacherID, Email: email, Name: name}
	if err := s.repo.FirstOrCreate(ctx, &teacher); err != nil {
		return dto.AuthHealthResponse{}, err
	}

	return dto.AuthHealthResponse{
		Status:    "authenticated",
		TeacherID: teacher.ID,
		Email:     teacher.Email,
		Name:      teacher.Name,
	}, nil
}
