package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWordUsageValidatesSchema(t *testing.T) {
	result, err := parseWordUsage("ubiquitous", `{"correct": false, "comment": "Means present everywhere."}`)
	require.NoError(t, err)
	require.Equal(t, WordUsageResult{Word: "ubiquitous", Correct: false, Comment: "Means present everywhere."}, result)

	result, err = parseWordUsage("ubiquitous", "```json\n{\"correct\": true, \"comment\": \"ok\"}\n```")
	require.NoError(t, err)
	require.True(t, result.Correct)

	_, err = parseWordUsage("ubiquitous", `{"correct": "yes", "comment": "ok"}`)
	require.Error(t, err)

	_, err = parseWordUsage("ubiquitous", `{"comment": "missing verdict"}`)
	require.Error(t, err)

	_, err = parseWordUsage("ubiquitous", `not json`)
	require.Error(t, err)
}

func TestBuildUserPromptTruncatesExcerpt(t *testing.T) {
	long := make([]byte, 800)
	for i := range long {
		long[i] = 'x'
	}
	prompt := buildUserPrompt(WordUsageInput{Word: "word", Sentence: "A word.", Excerpt: string(long)})
	require.Contains(t, prompt, "# Word\nword")
	require.Contains(t, prompt, "## Sentence\nA word.")
	require.NotContains(t, prompt, string(long[:501]))
}

func TestNewOpenAIEvaluatorRequiresKey(t *testing.T) {
	_, err := NewOpenAIEvaluator(OpenAIConfig{})
	require.Error(t, err)
}

func TestOpenAIEvaluatorEvaluateWord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var request map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, "gpt-4o-mini", request["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": `{"correct": true, "comment": "Used precisely."}`,
				},
			}},
		})
	}))
	defer server.Close()

	evaluator, err := NewOpenAIEvaluator(OpenAIConfig{APIKey: "test", BaseURL: server.URL})
	require.NoError(t, err)

	result, err := evaluator.EvaluateWord(context.Background(), WordUsageInput{Word: "precise", Sentence: "A precise answer."})
	require.NoError(t, err)
	require.True(t, result.Correct)
	require.Equal(t, "precise", result.Word)
	require.Equal(t, "Used precisely.", result.Comment)
}
