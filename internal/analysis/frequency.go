package analysis

import "strings"

// Frequency bands used when no corpus table is available. Larger ranks mean rarer words.
const (
	RankCommon = 100
	RankShort  = 500
	RankMedium = 2000
	RankLong   = 5000
)

var commonWords = map[string]struct{}{}

func init() {
	for _, word := range strings.Fields(`
		the be to of and a in that have i
		it for not on with he as you do at
		this but his by from they we say her she
		or an will my one all would there their what
		so up out if about who get which go me
		when make can like time no just him know take
		people into year your good some could them see other
		than then now look only come its over think also
		back after use two how our work first well way
		even new want because any these give day most us`) {
		commonWords[word] = struct{}{}
	}
}

// IsCommonWord reports whether the word is in the high-frequency English list.
func IsCommonWord(word string) bool {
	_, ok := commonWords[strings.ToLower(word)]
	return ok
}

// FrequencyRank estimates how rare a word is.
func FrequencyRank(word string) int {
	switch {
	case IsCommonWord(word):
		return RankCommon
	case len(word) <= 3:
		return RankShort
	case len(word) >= 8:
		return RankLong
	default:
		return RankMedium
	}
}
