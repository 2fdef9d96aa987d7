// Package analyzer turns raw document text into normalized index terms.
// The pipeline is lowercase, split on non-letter/non-digit boundaries,
// stem, then drop short tokens and stop words. Both the stemmer and the
// stop-word set are injectable so locale variants can be swapped without
// touching index internals.
package analyzer

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// defaultStopWords lists common English words excluded from indexing.
var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Stemmer reduces a token to its root form.
type Stemmer func(word string) string

// SnowballStemmer is the default English Porter stemmer.
func SnowballStemmer(word string) string {
	return snowballeng.Stem(word, false)
}

// IdentityStemmer disables stemming.
func IdentityStemmer(word string) string {
	return word
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithStemmer replaces the default Snowball stemmer.
func WithStemmer(s Stemmer) Option {
	return func(a *Analyzer) {
		if s != nil {
			a.stem = s
		}
	}
}

// WithMinTermLength sets the shortest token length kept after stemming.
func WithMinTermLength(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.minTermLength = n
		}
	}
}

// WithStopWords adds extra stop words to the default English set.
func WithStopWords(words ...string) Option {
	return func(a *Analyzer) {
		for _, w := range words {
			a.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// Analyzer is a deterministic, side-effect-free text normalizer. It is
// safe for concurrent use once constructed.
type Analyzer struct {
	stem          Stemmer
	stopWords     map[string]struct{}
	minTermLength int
}

// New builds an Analyzer with the default policy: Snowball English
// stemming, the default stop-word set, and minimum term length 3.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		stem:          SnowballStemmer,
		stopWords:     make(map[string]struct{}, len(defaultStopWords)),
		minTermLength: 3,
	}
	for w := range defaultStopWords {
		a.stopWords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces the ordered sequence of normalized terms for text.
// Stemming runs before the length and stop-word checks, so a token whose
// stem falls below the minimum length is dropped.
func (a *Analyzer) Analyze(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := a.stopWords[word]; isStop {
			continue
		}
		stemmed := a.stem(word)
		if len(stemmed) < a.minTermLength {
			continue
		}
		if _, isStop := a.stopWords[stemmed]; isStop {
			continue
		}
		terms = append(terms, stemmed)
	}
	return terms
}
