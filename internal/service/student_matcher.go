package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/analysis"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/repository"
)

// DefaultMatchThreshold is the minimum similarity (0-100) for a roster name to count as a match.
const DefaultMatchThreshold = 85

// StudentMatcher attributes an essay to a roster student from the name written in it.
type StudentMatcher interface {
	// Resolve returns the matched or newly created student. The boolean is false when no name was found.
	Resolve(ctx context.Context, teacherID, text string) (models.Student, bool, error)
}

type studentMatcher struct {
	repo      repository.StudentRepository
	threshold int
	logger    zerolog.Logger
}

// NewStudentMatcher builds a matcher. A non-positive threshold uses DefaultMatchThreshold.
func NewStudentMatcher(repo repository.StudentRepository, threshold int, logger zerolog.Logger) StudentMatcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	return &studentMatcher{
		repo:      repo,
		threshold: threshold,
		logger:    logger.With().Str("component", "student_matcher").Logger(),
	}
}

func (m *studentMatcher) Resolve(ctx context.Context, teacherID, text string) (models.Student, bool, error) {
	name := analysis.ExtractStudentName(text)
	if name == "" || teacherID == "" {
		return models.Student{}, false, nil
	}

	roster, err := m.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return models.Student{}, false, fmt.Errorf("list roster: %w", err)
	}

	target := analysis.NormalizeName(name)
	best := -1
	bestScore := 0
	for i, student := range roster {
		score := NameSimilarity(target, analysis.NormalizeName(student.Name))
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best >= 0 && bestScore >= m.threshold {
		m.logger.Debug().Str("student_id", roster[best].ID).Int("score", bestScore).Msg("essay matched to roster student")
		return roster[best], true, nil
	}

	student := models.Student{TeacherID: teacherID, Name: name}
	if err := m.repo.Create(ctx, &student); err != nil {
		return models.Student{}, false, fmt.Errorf("create student: %w", err)
	}

	m.logger.Info().Str("student_id", student.ID).Int("best_score", bestScore).Msg("created student from essay name")
	return student, true, nil
}

// NameSimilarity scores two normalised names from 0 to 100 using edit distance.
func NameSimilarity(a, b string) int {
	if a == "" && b == "" {
		return 100
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}

	distance := levenshtein.ComputeDistance(a, b)
	return int(100 * (1 - float64(distance)/float64(longest)))
}
