package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

// ConnectPostgres opens the metrics store using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the tables backing teachers, assignments, students and essays.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Teacher{}, &models.Assignment{}, &models.Student{}, &models.Essay{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
