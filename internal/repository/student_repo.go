package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

// StudentRepository defines persistence operations for a teacher's roster.
type StudentRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Student, error)
	GetByID(ctx context.Context, teacherID, id string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, teacherID, id string) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates a GORM-backed repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).Order("name ASC").Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}

func (r *studentRepository) GetByID(ctx context.Context, teacherID, id string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ? AND teacher_id = ?", id, teacherID).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) Update(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Save(student).Error
}

func (r *studentRepository) Delete(ctx context.Context, teacherID, id string) error {
	result := r.db.WithContext(ctx).Where("id = ? AND teacher_id = ?", id, teacherID).Delete(&models.Student{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
