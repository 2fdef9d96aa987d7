// Package suggest provides typeahead support: a secondary autocomplete
// index mapping terms to the documents that carry them, and term
// completion over the main index's dictionary.
package suggest

import (
	"sort"
	"strings"
	"sync"

	"github.com/clinilearn/casesearch/internal/analyzer"
	"github.com/clinilearn/casesearch/internal/index"
)

// DefaultSuggestionLimit is how many suggestions a prefix scan returns
// when the caller does not say otherwise.
const DefaultSuggestionLimit = 10

// Suggestion is one autocomplete candidate: the indexed term, the ids of
// the documents carrying it, and its popularity (distinct document count).
type Suggestion struct {
	Term        string   `json:"term"`
	DocumentIDs []string `json:"documentIds"`
	Popularity  int      `json:"popularity"`
}

// Autocomplete maps each indexed term to the set of owning document ids.
// Terms are stored whole; prefixes are matched at query time. Safe for
// concurrent readers with a single writer.
type Autocomplete struct {
	mu     sync.RWMutex
	an     *analyzer.Analyzer
	fields []string
	terms  map[string]map[string]struct{}
}

// New creates an empty autocomplete index over the given fields.
func New(an *analyzer.Analyzer, fields []string) *Autocomplete {
	return &Autocomplete{
		an:     an,
		fields: append([]string(nil), fields...),
		terms:  make(map[string]map[string]struct{}),
	}
}

// Build replaces the index contents with terms from the given documents.
func (ac *Autocomplete) Build(docs []index.Document) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.terms = make(map[string]map[string]struct{})
	for _, doc := range docs {
		ac.addLocked(doc)
	}
}

// Add indexes one document's configured fields.
func (ac *Autocomplete) Add(doc index.Document) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.addLocked(doc)
}

func (ac *Autocomplete) addLocked(doc index.Document) {
	for _, term := range ac.docTerms(doc) {
		owners, ok := ac.terms[term]
		if !ok {
			owners = make(map[string]struct{})
			ac.terms[term] = owners
		}
		owners[doc.ID] = struct{}{}
	}
}

// Remove drops the document from every term set it appears in, deleting
// terms left with no owners. The document passed must be the one that was
// indexed; its fields are re-tokenized to find the owning sets.
func (ac *Autocomplete) Remove(doc index.Document) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	for _, term := range ac.docTerms(doc) {
		owners, ok := ac.terms[term]
		if !ok {
			continue
		}
		delete(owners, doc.ID)
		if len(owners) == 0 {
			delete(ac.terms, term)
		}
	}
}

func (ac *Autocomplete) docTerms(doc index.Document) []string {
	var terms []string
	for _, field := range ac.fields {
		for _, value := range doc.FieldValues(field) {
			terms = append(terms, ac.an.Analyze(value)...)
		}
	}
	return terms
}

// TermCount returns the number of distinct indexed terms.
func (ac *Autocomplete) TermCount() int {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return len(ac.terms)
}

// Suggestions scans the indexed terms for the lowercased prefix and
// returns the most popular matches, ranked by distinct owning-document
// count with lexical order breaking ties. limit <= 0 selects the default
// of 10.
func (ac *Autocomplete) Suggestions(prefix string, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return []Suggestion{}
	}

	ac.mu.RLock()
	matches := make([]Suggestion, 0)
	for term, owners := range ac.terms {
		if !strings.HasPrefix(term, prefix) {
			continue
		}
		ids := make([]string, 0, len(owners))
		for id := range owners {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		matches = append(matches, Suggestion{
			Term:        term,
			DocumentIDs: ids,
			Popularity:  len(ids),
		})
	}
	ac.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Popularity != matches[j].Popularity {
			return matches[i].Popularity > matches[j].Popularity
		}
		return matches[i].Term < matches[j].Term
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// TermSource is the slice of the main index the completion scan reads.
type TermSource interface {
	Terms() []string
	DocumentFrequency(term string) int
}

// Completions returns up to limit terms from the source dictionary that
// start with the lowercased prefix, ranked by documentFrequency x term
// length. The weighting favors longer, more frequent terms over very
// specific short ones.
func Completions(src TermSource, prefix string, limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return []string{}
	}

	type weighted struct {
		term   string
		weight int
	}
	matches := make([]weighted, 0)
	for _, term := range src.Terms() {
		if !strings.HasPrefix(term, prefix) {
			continue
		}
		matches = append(matches, weighted{
			term:   term,
			weight: src.DocumentFrequency(term) * len(term),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].weight != matches[j].weight {
			return matches[i].weight > matches[j].weight
		}
		return matches[i].term < matches[j].term
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	completions := make([]string, len(matches))
	for i, m := range matches {
		completions[i] = m.term
	}
	return completions
}
