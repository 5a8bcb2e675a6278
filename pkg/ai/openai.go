package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vocab",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of word usage evaluation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vocab",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of word usage evaluation failures",
	}, []string{"model"})
)

const wordUsageSchema = `{
	"type": "object",
	"required": ["correct", "comment"],
	"properties": {
		"correct": {"type": "boolean"},
		"comment": {"type": "string", "maxLength": 600}
	}
}`

var responseSchema = jsonschema.MustCompileString("word_usage.schema.json", wordUsageSchema)

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 200
	}

	tracer := otel.Tracer("github.com/lousydropout/vocab-recommendation-sub000/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIEvaluator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_evaluator").Logger(),
	}, nil
}

// EvaluateWord asks the model whether the word is used correctly and at a suitable register.
func (e *OpenAIEvaluator) EvaluateWord(parent context.Context, input WordUsageInput) (WordUsageResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.evaluate_word", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.String("word", input.Word),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: evaluatorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return WordUsageResult{}, e.fail(span, fmt.Errorf("openai evaluate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return WordUsageResult{}, e.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := parseWordUsage(input.Word, resp.Choices[0].Message.Content)
	if err != nil {
		return WordUsageResult{}, e.fail(span, err)
	}

	e.logger.Debug().Str("word", input.Word).Bool("correct", result.Correct).Msg("word evaluated")
	return result, nil
}

func (e *OpenAIEvaluator) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(e.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func evaluatorSystemPrompt() string {
	return "You evaluate vocabulary usage in middle-school essays. Respond with a JSON object containing " +
		"correct (boolean: is the word used correctly in its sentence) and comment (one or two sentences on " +
		"meaning and whether the formality suits middle-school writing)."
}

func buildUserPrompt(input WordUsageInput) string {
	excerpt := input.Excerpt
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}

	builder := strings.Builder{}
	builder.WriteString("# Word\n")
	builder.WriteString(input.Word)
	builder.WriteString("\n\n## Sentence\n")
	builder.WriteString(input.Sentence)
	builder.WriteString("\n\n## Essay Excerpt\n")
	builder.WriteString(strings.ToValidUTF8(excerpt, ""))
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseWordUsage(word, content string) (WordUsageResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return WordUsageResult{}, fmt.Errorf("parse evaluation json: %w", err)
	}
	if err := responseSchema.Validate(raw); err != nil {
		return WordUsageResult{}, fmt.Errorf("evaluation json does not match schema: %w", err)
	}

	var payload struct {
		Correct bool   `json:"correct"`
		Comment string `json:"comment"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return WordUsageResult{}, fmt.Errorf("parse evaluation json: %w", err)
	}

	return WordUsageResult{
		Word:    word,
		Correct: payload.Correct,
		Comment: strings.TrimSpace(payload.Comment),
	}, nil
}
