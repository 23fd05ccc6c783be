package text

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Tokenizer splits text into lower-cased word tokens, dropping stopwords and
// optionally reducing each token to its Snowball stem.
type Tokenizer struct {
	stopwords map[string]struct{}
	stem      bool
}

// NewTokenizer builds a tokenizer over the given stopword set.
// A nil set disables stopword removal.
func NewTokenizer(stopwords map[string]struct{}, stem bool) *Tokenizer {
	if stopwords == nil {
		stopwords = map[string]struct{}{}
	}
	return &Tokenizer{stopwords: stopwords, stem: stem}
}

// Tokens returns the filtered tokens of s in order of appearance.
func (t *Tokenizer) Tokens(s string) []string {
	raw := Words(s)
	out := raw[:0]
	for _, w := range raw {
		if _, isStop := t.stopwords[w]; isStop {
			continue
		}
		if t.stem {
			w = english.Stem(w, false)
			if w == "" {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

// IsStopword reports whether w is removed by this tokenizer.
func (t *Tokenizer) IsStopword(w string) bool {
	_, ok := t.stopwords[w]
	return ok
}

// Stems reports whether tokens are stemmed.
func (t *Tokenizer) Stems() bool { return t.stem }

// Words returns every lower-cased word of s without any filtering.
func Words(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// NGrams expands tokens into all n-grams for n in [1, maxN], joined by a
// single space. Unigrams come first, then bigrams, and so on.
func NGrams(tokens []string, maxN int) []string {
	if maxN < 1 {
		maxN = 1
	}
	out := make([]string, 0, len(tokens)*maxN)
	out = append(out, tokens...)
	for n := 2; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
