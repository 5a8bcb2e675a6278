package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

// TeacherRepository persists the identities seen on authenticated requests.
type TeacherRepository interface {
	GetByID(ctx context.Context, id string) (models.Teacher, error)
	FirstOrCreate(ctx context.Context, teacher *models.Teacher) error
}

type teacherRepository struct {
	db *gorm.DB
}

// NewTeacherRepository instantiates a GORM-backed repository.
func NewTeacherRepository(db *gorm.DB) TeacherRepository {
	return &teacherRepository{db: db}
}

func (r *teacherRepository) GetByID(ctx context.Context, id string) (models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&teacher).Error; err != nil {
		return models.Teacher{}, err
	}

	return teacher, nil
}

// FirstOrCreate loads the teacher by identifier, inserting the supplied record when absent.
func (r *teacherRepository) FirstOrCreate(ctx context.Context, teacher *models.Teacher) error {
	return r.db.WithContext(ctx).
		Where(models.Teacher{ID: teacher.ID}).
		Attrs(models.Teacher{Email: teacher.Email, Name: teacher.Name}).
		FirstOrCreate(teacher).Error
}
