package textutil

import (
	"sort"
	"strings"
	"unicode"
)

const minTokenLength = 3

var stopWords = map[string]struct{}{
	"and": {}, "are": {}, "but": {}, "can": {}, "for": {}, "from": {}, "had": {},
	"has": {}, "have": {}, "her": {}, "his": {}, "its": {}, "just": {}, "not": {},
	"our": {}, "she": {}, "that": {}, "the": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "they": {}, "this": {}, "was": {}, "were": {}, "what": {}, "when": {},
	"will": {}, "with": {}, "you": {}, "your": {},
}

// Tokenize splits text into lowercase tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, token := range fields {
		if len([]rune(token)) < minTokenLength {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// Keywords returns up to limit tokens ordered by descending frequency, ties
// broken by first appearance. It returns nil when limit is not positive or
// the text has no usable tokens.
func Keywords(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
