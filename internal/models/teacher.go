package models

import "time"

// Teacher mirrors the identity behind a bearer token. The identifier is the token subject.
type Teacher struct {
	ID        string    `gorm:"primaryKey;size:128" json:"teacher_id"`
	Email     string    `gorm:"size:255" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
