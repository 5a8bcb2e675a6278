package dto

import (
	"time"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

const isoLayout = time.RFC3339

// EssayCreateRequest is the JSON body accepted by POST /essay.
type EssayCreateRequest struct {
	EssayText           string  `json:"essay_text"`
	AssignmentID        *string `json:"assignment_id" validate:"omitempty,uuid4"`
	StudentID           *string `json:"student_id" validate:"omitempty,uuid4"`
	RequestPresignedURL bool    `json:"request_presigned_url"`
}

// EssayCreateResponse acknowledges an accepted essay.
type EssayCreateResponse struct {
	EssayID      string `json:"essay_id"`
	Status       string `json:"status"`
	FileKey      string `json:"file_key,omitempty"`
	PresignedURL string `json:"presigned_url,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// UploadURLRequest asks for a presigned upload slot under an assignment.
type UploadURLRequest struct {
	FileName string `json:"file_name" validate:"required,max=255"`
}

// UploadURLResponse carries the presigned PUT url for an assignment upload.
type UploadURLResponse struct {
	EssayID      string `json:"essay_id"`
	PresignedURL string `json:"presigned_url"`
	ExpiresIn    int    `json:"expires_in"`
	FileKey      string `json:"file_key"`
}

// FeedbackItem is a single per-word judgement as exchanged with clients.
type FeedbackItem struct {
	Word    string `json:"word" validate:"required,max=100"`
	Correct bool   `json:"correct"`
	Comment string `json:"comment" validate:"max=1000"`
}

// EssayResponse is the public representation of an essay record.
type EssayResponse struct {
	EssayID      string               `json:"essay_id"`
	Status       string               `json:"status"`
	FileKey      string               `json:"file_key"`
	AssignmentID *string              `json:"assignment_id,omitempty"`
	StudentID    *string              `json:"student_id,omitempty"`
	Metrics      *models.EssayMetrics `json:"metrics"`
	Feedback     []FeedbackItem       `json:"feedback"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
	ProcessedAt  *string              `json:"processed_at,omitempty"`
}

// EssayOverrideRequest replaces the feedback list of a processed essay.
type EssayOverrideRequest struct {
	Feedback []FeedbackItem `json:"feedback" validate:"required,dive"`
}

// EssayOverrideResponse acknowledges a feedback override.
type EssayOverrideResponse struct {
	EssayID string `json:"essay_id"`
	Message string `json:"message"`
}

// EssayStatusFrame is pushed on the status stream whenever a transition is observed.
type EssayStatusFrame struct {
	EssayID string `json:"essay_id"`
	Status  string `json:"status"`
}

// NewEssayResponse converts a model into a DTO. Metrics stay null until the essay is processed.
func NewEssayResponse(model models.Essay) EssayResponse {
	response := EssayResponse{
		EssayID:      model.ID,
		Status:       model.Status,
		FileKey:      model.FileKey,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Feedback:     NewFeedbackItems(model.Feedback),
		CreatedAt:    model.CreatedAt.UTC().Format(isoLayout),
		UpdatedAt:    model.UpdatedAt.UTC().Format(isoLayout),
	}

	if model.IsProcessed() {
		metrics := model.Metrics.Data()
		response.Metrics = &metrics
	}
	if model.ProcessedAt != nil {
		processed := model.ProcessedAt.UTC().Format(isoLayout)
		response.ProcessedAt = &processed
	}

	return response
}

// NewFeedbackItems converts stored feedback entries into DTOs.
func NewFeedbackItems(entries []models.FeedbackEntry) []FeedbackItem {
	items := make([]FeedbackItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, FeedbackItem{Word: entry.Word, Correct: entry.Correct, Comment: entry.Comment})
	}
	return items
}
