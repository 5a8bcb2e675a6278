package dto

import (
	"time"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

// StudentCreateRequest describes the payload for adding a student to the roster.
type StudentCreateRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=255"`
	GradeLevel *int   `json:"grade_level" validate:"omitempty,gte=0,lte=12"`
	Notes      string `json:"notes" validate:"max=4000"`
}

// StudentUpdateRequest carries a partial update; nil fields are left unchanged.
type StudentUpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	GradeLevel *int    `json:"grade_level" validate:"omitempty,gte=0,lte=12"`
	Notes      *string `json:"notes" validate:"omitempty,max=4000"`
}

// StudentResponse is the serialized representation of a roster entry.
type StudentResponse struct {
	StudentID  string    `json:"student_id"`
	TeacherID  string    `json:"teacher_id"`
	Name       string    `json:"name"`
	GradeLevel *int      `json:"grade_level"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		StudentID:  model.ID,
		TeacherID:  model.TeacherID,
		Name:       model.Name,
		GradeLevel: model.GradeLevel,
		Notes:      model.Notes,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// NewStudentResponseSlice converts a slice of models into DTOs.
func NewStudentResponseSlice(students []models.Student) []StudentResponse {
	responses := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, NewStudentResponse(student))
	}

	return responses
}
