package models

import (
	"time"

	"gorm.io/datatypes"
)

// Essay lifecycle statuses. Transitions only move forward.
const (
	EssayStatusAwaitingProcessing = "awaiting_processing"
	EssayStatusProcessing         = "processing"
	EssayStatusProcessed          = "processed"
)

// EssayKeyPrefix is the object store prefix under which raw essay text is written.
const EssayKeyPrefix = "essays/"

// EssayMetrics captures the lexical measurements computed for a processed essay.
type EssayMetrics struct {
	WordCount       int     `json:"word_count"`
	UniqueWords     int     `json:"unique_words"`
	TypeTokenRatio  float64 `json:"type_token_ratio"`
	NounRatio       float64 `json:"noun_ratio"`
	VerbRatio       float64 `json:"verb_ratio"`
	AdjRatio        float64 `json:"adj_ratio"`
	AdvRatio        float64 `json:"adv_ratio"`
	AvgWordFreqRank float64 `json:"avg_word_freq_rank"`
}

// FeedbackEntry is a per-word judgement attached to an essay.
type FeedbackEntry struct {
	Word    string `json:"word"`
	Correct bool   `json:"correct"`
	Comment string `json:"comment"`
}

// Essay is a submitted text and the analysis state attached to it.
type Essay struct {
	ID                 string                             `gorm:"primaryKey;size:36" json:"essay_id"`
	TeacherID          *string                            `gorm:"size:128;index" json:"teacher_id,omitempty"`
	AssignmentID       *string                            `gorm:"size:36;index" json:"assignment_id,omitempty"`
	StudentID          *string                            `gorm:"size:36;index" json:"student_id,omitempty"`
	FileKey            string                             `gorm:"size:255;not null" json:"file_key"`
	Status             string                             `gorm:"size:32;not null;index" json:"status"`
	Metrics            datatypes.JSONType[EssayMetrics]   `json:"metrics"`
	Feedback           datatypes.JSONSlice[FeedbackEntry] `json:"feedback"`
	CorrelationID      string                             `gorm:"size:64" json:"correlation_id,omitempty"`
	Version            int                                `gorm:"not null;default:1" json:"version"`
	ProcessingAttempts int                                `gorm:"not null;default:0" json:"processing_attempts"`
	ProcessedAt        *time.Time                         `json:"processed_at,omitempty"`
	CreatedAt          time.Time                          `json:"created_at"`
	UpdatedAt          time.Time                          `json:"updated_at"`
}

// EssayFileKey returns the object key holding the raw text of the essay.
func EssayFileKey(id string) string {
	return EssayKeyPrefix + id + ".txt"
}

// IsProcessed reports whether analysis results are attached to the essay.
func (e Essay) IsProcessed() bool {
	return e.Status == EssayStatusProcessed
}

// OwnedBy reports whether the essay was uploaded by the given teacher.
func (e Essay) OwnedBy(teacherID string) bool {
	return e.TeacherID != nil && teacherID != "" && *e.TeacherID == teacherID
}

// StatusRank orders statuses along the lifecycle. Unknown statuses rank below every known one.
func StatusRank(status string) int {
	switch status {
	case EssayStatusAwaitingProcessing:
		return 1
	case EssayStatusProcessing:
		return 2
	case EssayStatusProcessed:
		return 3
	default:
		return 0
	}
}

// CanTransition reports whether moving from one status to another keeps the lifecycle forward-only.
// Re-entering processing is allowed so a redelivered message can retry an interrupted attempt.
func CanTransition(from, to string) bool {
	if from == EssayStatusProcessing && to == EssayStatusProcessing {
		return true
	}
	return StatusRank(to) > StatusRank(from) && StatusRank(from) > 0
}
