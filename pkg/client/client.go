// Package client talks to the essay analyzer HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the spacing between status checks in WaitForProcessed.
const DefaultPollInterval = 3 * time.Second

// Essay lifecycle statuses reported by the API.
const (
	StatusAwaitingProcessing = "awaiting_processing"
	StatusProcessing         = "processing"
	StatusProcessed          = "processed"
)

var (
	// ErrNotFound indicates the API does not know the essay.
	ErrNotFound = errors.New("essay not found")
	// ErrUnauthorized indicates the API rejected the credentials. The token provider has been cleared.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStatusRegressed indicates the API reported an earlier lifecycle status than one already observed.
	ErrStatusRegressed = errors.New("essay status moved backwards")
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Metrics are the lexical measurements of a processed essay.
type Metrics struct {
	WordCount       int     `json:"word_count"`
	UniqueWords     int     `json:"unique_words"`
	TypeTokenRatio  float64 `json:"type_token_ratio"`
	NounRatio       float64 `json:"noun_ratio"`
	VerbRatio       float64 `json:"verb_ratio"`
	AdjRatio        float64 `json:"adj_ratio"`
	AdvRatio        float64 `json:"adv_ratio"`
	AvgWordFreqRank float64 `json:"avg_word_freq_rank"`
}

// Feedback is the judgement on one word of the essay.
type Feedback struct {
	Word    string `json:"word"`
	Correct bool   `json:"correct"`
	Comment string `json:"comment"`
}

// Essay is the API view of a submitted essay.
type Essay struct {
	EssayID      string     `json:"essay_id"`
	Status       string     `json:"status"`
	FileKey      string     `json:"file_key"`
	AssignmentID *string    `json:"assignment_id,omitempty"`
	StudentID    *string    `json:"student_id,omitempty"`
	Metrics      *Metrics   `json:"metrics"`
	Feedback     []Feedback `json:"feedback"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
	ProcessedAt  *string    `json:"processed_at,omitempty"`
}

// SubmitRequest is the body of POST /essay.
type SubmitRequest struct {
	EssayText    string  `json:"essay_text"`
	AssignmentID *string `json:"assignment_id,omitempty"`
	StudentID    *string `json:"student_id,omitempty"`
}

// Submission acknowledges an accepted essay.
type Submission struct {
	EssayID string `json:"essay_id"`
	Status  string `json:"status"`
	FileKey string `json:"file_key"`
}

type apiError struct {
	Message string `json:"message"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Tokens  TokenProvider
	HTTP    HTTPDoer
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Client calls the essay analyzer API.
type Client struct {
	baseURL string
	tokens  TokenProvider
	http    HTTPDoer
	logger  zerolog.Logger
}

// New constructs a Client. Without an explicit HTTPDoer a *http.Client with cfg.Timeout is used.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url must be provided")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	doer := cfg.HTTP
	if doer == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		baseURL: base,
		tokens:  tokens,
		http:    doer,
		logger:  logger.With().Str("component", "essay_client").Logger(),
	}, nil
}

// SubmitEssay uploads essay text and returns the new essay identifier.
func (c *Client) SubmitEssay(ctx context.Context, payload SubmitRequest) (Submission, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Submission{}, fmt.Errorf("encode essay: %w", err)
	}

	var submission Submission
	if err := c.do(ctx, http.MethodPost, "/essay", body, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// GetEssay fetches the current state of an essay.
func (c *Client) GetEssay(ctx context.Context, id string) (Essay, error) {
	var essay Essay
	if err := c.do(ctx, http.MethodGet, "/essay/"+url.PathEscape(id), nil, &essay); err != nil {
		return Essay{}, err
	}
	return essay, nil
}

// WaitForProcessed polls the essay at a fixed interval until it is processed. The first
// request is made one interval after the call, giving the worker time to pick the essay up.
// It returns ctx.Err() once the context is done and ErrStatusRegressed if the status ever moves backwards.
func (c *Client) WaitForProcessed(ctx context.Context, id string, interval time.Duration) (Essay, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	highest := 0
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Essay{}, err
		}

		select {
		case <-ctx.Done():
			return Essay{}, ctx.Err()
		case <-timer.C:
		}

		essay, err := c.GetEssay(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Essay{}, ctxErr
			}
			return Essay{}, err
		}

		rank := statusRank(essay.Status)
		if rank < highest {
			return Essay{}, fmt.Errorf("%w: %s after a later status", ErrStatusRegressed, essay.Status)
		}
		highest = rank

		c.logger.Debug().Str("essay_id", id).Str("status", essay.Status).Int("attempt", attempt).Msg("polled essay status")
		if essay.Status == StatusProcessed {
			return essay, nil
		}

		timer.Reset(interval)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, target interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.tokens.Clear()
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var failure apiError
		if json.Unmarshal(raw, &failure) == nil && failure.Message != "" {
			return fmt.Errorf("api returned status %d: %s", resp.StatusCode, failure.Message)
		}
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	if target == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusRank(status string) int {
	switch status {
	case StatusAwaitingProcessing:
		return 1
	case StatusProcessing:
		return 2
	case StatusProcessed:
		return 3
	default:
		return 0
	}
}
