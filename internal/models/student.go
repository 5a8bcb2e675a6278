package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student is a learner on a teacher's roster.
type Student struct {
	ID         string    `gorm:"primaryKey;size:36" json:"student_id"`
	TeacherID  string    `gorm:"size:128;not null;index" json:"teacher_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	GradeLevel *int      `json:"grade_level"`
	Notes      string    `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random identifier when none was provided.
func (s *Student) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
