package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assignment groups essays written for the same prompt by a teacher's students.
type Assignment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"assignment_id"`
	TeacherID   string    `gorm:"size:128;not null;index" json:"teacher_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random identifier when none was provided.
func (a *Assignment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
