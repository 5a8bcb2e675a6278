package analysis

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	labelledName = regexp.MustCompile(`^(?i:name):\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	gradedName   = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s*[—–-]\s*(?i:grade)`)
	bylineName   = regexp.MustCompile(`^(?i:by)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	punctuation  = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	essayStarters = map[string]struct{}{
		"The": {}, "In": {}, "This": {}, "That": {}, "When": {}, "Where": {},
		"Why": {}, "How": {}, "What": {}, "Essay": {}, "Introduction": {},
	}
)

// ExtractStudentName looks for the author's name on the first line of an essay.
// It recognises "Name: X", "X - Grade N", "By X" and, as a fallback, a first line of
// one to three capitalised words. It returns an empty string when nothing matches.
func ExtractStudentName(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	firstLine := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])

	for _, pattern := range []*regexp.Regexp{labelledName, gradedName, bylineName} {
		if match := pattern.FindStringSubmatch(firstLine); match != nil {
			return strings.TrimSpace(match[1])
		}
	}

	words := strings.Fields(firstLine)
	if len(words) == 0 || len(words) > 3 {
		return ""
	}
	for _, word := range words {
		if _, starter := essayStarters[word]; starter {
			return ""
		}
		if len(word) < 2 || !isAlphabetic(word) || !unicode.IsUpper([]rune(word)[0]) {
			return ""
		}
	}

	return strings.Join(words, " ")
}

// NormalizeName lowercases the name, strips punctuation and collapses whitespace.
func NormalizeName(name string) string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(name), "")
	return strings.Join(strings.Fields(cleaned), " ")
}

func isAlphabetic(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
