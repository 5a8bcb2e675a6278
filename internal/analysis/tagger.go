package analysis

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// TaggedToken is a token with its Penn Treebank part-of-speech tag.
type TaggedToken struct {
	Text string
	Tag  string
}

// Sentence groups the tagged tokens that belong to one sentence of the source text.
type Sentence struct {
	Text   string
	Tokens []TaggedToken
}

// Tagger splits text into sentences and tags every token.
type Tagger interface {
	Annotate(text string) ([]Sentence, error)
}

// ProseTagger tags text with the averaged perceptron model bundled with prose.
type ProseTagger struct{}

// NewProseTagger returns a tagger backed by prose.
func NewProseTagger() ProseTagger {
	return ProseTagger{}
}

// Annotate segments and tags the text in a single pass and assigns each token to the
// sentence whose text contains it.
func (ProseTagger) Annotate(text string) ([]Sentence, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		return nil, err
	}

	segments := doc.Sentences()
	sentences := make([]Sentence, 0, len(segments))
	for _, segment := range segments {
		sentences = append(sentences, Sentence{Text: strings.TrimSpace(segment.Text)})
	}
	if len(sentences) == 0 {
		sentences = append(sentences, Sentence{Text: strings.TrimSpace(text)})
	}

	current, offset := 0, 0
	for _, token := range doc.Tokens() {
		index, position := locate(sentences, current, offset, token.Text)
		if index >= 0 {
			current, offset = index, position
		}
		sentences[current].Tokens = append(sentences[current].Tokens, TaggedToken{Text: token.Text, Tag: token.Tag})
	}

	return sentences, nil
}

// locate finds the token in the current sentence after offset, or in a later sentence.
// It returns -1 when the token text does not occur verbatim.
func locate(sentences []Sentence, current, offset int, token string) (int, int) {
	for i := current; i < len(sentences); i++ {
		start := 0
		if i == current {
			start = offset
		}
		if start > len(sentences[i].Text) {
			continue
		}
		if idx := strings.Index(sentences[i].Text[start:], token); idx >= 0 {
			return i, start + idx + len(token)
		}
	}
	return -1, 0
}
