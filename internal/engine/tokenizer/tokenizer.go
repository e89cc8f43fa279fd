// Package tokenizer implements the TOKENISE analysis used for both indexed
// documents and query leaves: lower-casing, splitting on non-alphanumeric
// boundaries, stop-word removal and suffix stemming. Positions count kept
// tokens only, so a phrase and the text it was cut from line up.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

// Longest suffixes first; the first matching rule wins.
var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Token is one analysed term and its position among the kept tokens.
type Token struct {
	Term     string
	Position int
}

// Tokenize analyses text into stemmed, lower-cased tokens.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		term := stem(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

func stem(word string) string {
	for _, rule := range suffixRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
		if len(stemmed) >= rule.minLen {
			return stemmed
		}
	}
	return word
}
