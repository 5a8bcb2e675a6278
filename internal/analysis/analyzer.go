// Package analysis computes the lexical metrics and candidate vocabulary of an essay.
package analysis

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
)

// DefaultMaxCandidates bounds how many words are sent for usage evaluation.
const DefaultMaxCandidates = 20

var (
	wordPattern       = regexp.MustCompile(`[A-Za-z]+`)
	alphaPattern      = regexp.MustCompile(`^[A-Za-z]+$`)
	apostropheRemover = strings.NewReplacer("'", "", "’", "")
)

// Candidate is a word selected for usage evaluation together with the sentence it appeared in.
type Candidate struct {
	Word     string
	Tag      string
	Sentence string
	Score    int
}

// Result is the outcome of analysing one essay.
type Result struct {
	Metrics    models.EssayMetrics
	Candidates []Candidate
}

// Analyzer produces metrics and evaluation candidates for essay text.
type Analyzer struct {
	tagger        Tagger
	maxCandidates int
}

// NewAnalyzer builds an analyzer. A nil tagger defaults to prose and a non-positive limit
// defaults to DefaultMaxCandidates.
func NewAnalyzer(tagger Tagger, maxCandidates int) *Analyzer {
	if tagger == nil {
		tagger = NewProseTagger()
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Analyzer{tagger: tagger, maxCandidates: maxCandidates}
}

// Analyze computes metrics for the text and selects the rarest words for evaluation.
func (a *Analyzer) Analyze(text string) (Result, error) {
	words := Tokenize(text)
	metrics := lexicalMetrics(words)

	sentences, err := a.tagger.Annotate(text)
	if err != nil {
		return Result{}, err
	}

	nouns, verbs, adjectives, adverbs, total := 0, 0, 0, 0, 0
	for _, sentence := range sentences {
		for _, token := range sentence.Tokens {
			if !alphaPattern.MatchString(token.Text) {
				continue
			}
			total++
			switch {
			case strings.HasPrefix(token.Tag, "NN"):
				nouns++
			case strings.HasPrefix(token.Tag, "VB"):
				verbs++
			case strings.HasPrefix(token.Tag, "JJ"):
				adjectives++
			case strings.HasPrefix(token.Tag, "RB"):
				adverbs++
			}
		}
	}
	metrics.NounRatio = ratio(nouns, total)
	metrics.VerbRatio = ratio(verbs, total)
	metrics.AdjRatio = ratio(adjectives, total)
	metrics.AdvRatio = ratio(adverbs, total)

	return Result{
		Metrics:    metrics,
		Candidates: selectCandidates(sentences, a.maxCandidates),
	}, nil
}

// Tokenize returns the lowercase alphabetic words of the text. Apostrophes inside
// contractions are dropped so "don't" counts as one word.
func Tokenize(text string) []string {
	matches := wordPattern.FindAllString(apostropheRemover.Replace(text), -1)
	words := make([]string, 0, len(matches))
	for _, match := range matches {
		words = append(words, strings.ToLower(match))
	}
	return words
}

func lexicalMetrics(words []string) models.EssayMetrics {
	if len(words) == 0 {
		return models.EssayMetrics{}
	}

	unique := make(map[string]struct{}, len(words))
	rankTotal := 0
	for _, word := range words {
		unique[word] = struct{}{}
		rankTotal += FrequencyRank(word)
	}

	return models.EssayMetrics{
		WordCount:       len(words),
		UniqueWords:     len(unique),
		TypeTokenRatio:  Round(float64(len(unique))/float64(len(words)), 3),
		AvgWordFreqRank: math.Round(float64(rankTotal) / float64(len(words))),
	}
}

func selectCandidates(sentences []Sentence, limit int) []Candidate {
	best := map[string]Candidate{}
	order := []string{}

	for _, sentence := range sentences {
		for _, token := range sentence.Tokens {
			word := strings.ToLower(token.Text)
			if len(word) < 4 || !alphaPattern.MatchString(word) || IsCommonWord(word) {
				continue
			}

			score := FrequencyRank(word) + len(word)*100
			if isContentTag(token.Tag) && len(word) >= 6 {
				score += 500
			}

			existing, seen := best[word]
			if !seen {
				order = append(order, word)
			}
			if !seen || score > existing.Score {
				best[word] = Candidate{Word: token.Text, Tag: token.Tag, Sentence: sentence.Text, Score: score}
			}
		}
	}

	candidates := make([]Candidate, 0, len(order))
	for _, word := range order {
		candidates = append(candidates, best[word])
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func isContentTag(tag string) bool {
	return strings.HasPrefix(tag, "NN") || strings.HasPrefix(tag, "JJ") || strings.HasPrefix(tag, "RB")
}

func ratio(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(float64(count)/float64(total), 3)
}

// Round rounds value to the given number of decimal places.
func Round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}

// Excerpt returns the sentence with up to radius characters of surrounding text on each side.
func Excerpt(text, sentence string, radius int) string {
	idx := strings.Index(text, sentence)
	if idx < 0 {
		if len(text) > 2*radius+len(sentence) {
			return strings.ToValidUTF8(text[:2*radius+len(sentence)], "")
		}
		return text
	}

	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(sentence) + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.ToValidUTF8(text[start:end], "")
}
