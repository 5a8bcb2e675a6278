package ai

import "context"

// WordUsageInput is one candidate word together with the text it appeared in.
type WordUsageInput struct {
	Word     string
	Sentence string
	Excerpt  string
}

// WordUsageResult is the judgement returned for a candidate word.
type WordUsageResult struct {
	Word    string `json:"word"`
	Correct bool   `json:"correct"`
	Comment string `json:"comment"`
}

// Evaluator describes a model that judges whether a word is used correctly in context.
type Evaluator interface {
	EvaluateWord(ctx context.Context, input WordUsageInput) (WordUsageResult, error)
}
