// Package index implements the in-memory inverted index at the core of
// the search engine. Postings are keyed by stable document id, so
// incremental removal never forces a renumbering rebuild. A single Index
// is safe for concurrent readers with one writer at a time; all public
// methods take the index lock themselves.
package index

import (
	"sort"
	"sync"

	"github.com/clinilearn/casesearch/internal/analyzer"
)

// docEntry is the per-document bookkeeping the index maintains alongside
// the postings: the distinct term set, its size, and the insertion
// ordinal used for stable tie-breaks.
type docEntry struct {
	doc     Document
	terms   map[string]struct{}
	length  int
	ordinal int
}

// Index maps terms to per-document term frequencies and tracks document
// lengths. The document frequency of a term is the size of its posting
// map; a term whose posting map empties is deleted outright, so a term
// is present if and only if some indexed document contains it.
type Index struct {
	mu          sync.RWMutex
	an          *analyzer.Analyzer
	fields      []string
	postings    map[string]map[string]int
	docs        map[string]*docEntry
	nextOrdinal int
}

// New creates an empty index over the designated fields, normalizing text
// with the given analyzer.
func New(an *analyzer.Analyzer, fields []string) *Index {
	return &Index{
		an:       an,
		fields:   append([]string(nil), fields...),
		postings: make(map[string]map[string]int),
		docs:     make(map[string]*docEntry),
	}
}

// Fields returns the designated field names.
func (x *Index) Fields() []string {
	return append([]string(nil), x.fields...)
}

// Analyze normalizes free text with the index's analyzer. Queries must go
// through the same normalization as indexed documents.
func (x *Index) Analyze(text string) []string {
	return x.an.Analyze(text)
}

// Build indexes the given documents from scratch, replacing any previous
// contents. A document missing a designated field is skipped for that
// field; an empty document gets length 0 and no postings.
func (x *Index) Build(docs []Document) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.postings = make(map[string]map[string]int)
	x.docs = make(map[string]*docEntry, len(docs))
	x.nextOrdinal = 0
	for _, doc := range docs {
		x.addLocked(doc)
	}
}

// Rebuild is a full reconstruction from source documents. It exists for
// callers recovering from a corrupt snapshot or reconciling with the
// document store; Build and Rebuild are the same operation.
func (x *Index) Rebuild(docs []Document) {
	x.Build(docs)
}

// Add indexes documents incrementally. Existing postings for other
// documents are not disturbed. Re-adding an id replaces that document's
// postings while keeping its original ordinal.
func (x *Index) Add(docs ...Document) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, doc := range docs {
		x.addLocked(doc)
	}
}

func (x *Index) addLocked(doc Document) {
	ordinal := x.nextOrdinal
	if prev, exists := x.docs[doc.ID]; exists {
		ordinal = prev.ordinal
		x.removeLocked(doc.ID)
	} else {
		x.nextOrdinal++
	}

	entry := &docEntry{
		doc:     doc,
		terms:   make(map[string]struct{}),
		ordinal: ordinal,
	}
	for _, field := range x.fields {
		for _, value := range doc.FieldValues(field) {
			for _, term := range x.an.Analyze(value) {
				entry.terms[term] = struct{}{}
				posting, ok := x.postings[term]
				if !ok {
					posting = make(map[string]int)
					x.postings[term] = posting
				}
				posting[doc.ID]++
			}
		}
	}
	entry.length = len(entry.terms)
	x.docs[doc.ID] = entry
}

// Remove deletes the given documents and every posting that references
// them, dropping any term whose document frequency reaches zero. It
// returns the number of documents actually removed.
func (x *Index) Remove(ids ...string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if x.removeLocked(id) {
			removed++
		}
	}
	return removed
}

func (x *Index) removeLocked(id string) bool {
	entry, ok := x.docs[id]
	if !ok {
		return false
	}
	for term := range entry.terms {
		posting := x.postings[term]
		delete(posting, id)
		if len(posting) == 0 {
			delete(x.postings, term)
		}
	}
	delete(x.docs, id)
	return true
}

// DocumentCount returns the number of indexed documents.
func (x *Index) DocumentCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// TermCount returns the number of distinct terms in the index.
func (x *Index) TermCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.postings)
}

// DocumentFrequency returns the number of distinct documents containing
// the term.
func (x *Index) DocumentFrequency(term string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.postings[term])
}

// DocumentLength returns the distinct-term count recorded for the
// document, or 0 if the id is not indexed.
func (x *Index) DocumentLength(id string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if entry, ok := x.docs[id]; ok {
		return entry.length
	}
	return 0
}

// Document returns the stored document for id.
func (x *Index) Document(id string) (Document, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if entry, ok := x.docs[id]; ok {
		return entry.doc, true
	}
	return Document{}, false
}

// Documents returns every indexed document in insertion order.
func (x *Index) Documents() []Document {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entries := make([]*docEntry, 0, len(x.docs))
	for _, entry := range x.docs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ordinal < entries[j].ordinal
	})
	docs := make([]Document, len(entries))
	for i, entry := range entries {
		docs[i] = entry.doc
	}
	return docs
}

// Terms returns every indexed term in lexical order.
func (x *Index) Terms() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	terms := make([]string, 0, len(x.postings))
	for term := range x.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// QueryView is a consistent copy of the posting data needed to score one
// query: per-term postings plus the lengths, ordinals, and documents of
// every candidate.
type QueryView struct {
	DocumentCount int
	Postings      map[string]map[string]int
	DocFreqs      map[string]int
	Lengths       map[string]int
	Ordinals      map[string]int
	Docs          map[string]Document
}

// QueryView copies, under a single read lock, everything the scorer needs
// for the given normalized terms. maxPostings caps how many postings are
// copied per term to bound worst-case latency on pathologically common
// terms; 0 means no cap.
func (x *Index) QueryView(terms []string, maxPostings int) QueryView {
	x.mu.RLock()
	defer x.mu.RUnlock()
	view := QueryView{
		DocumentCount: len(x.docs),
		Postings:      make(map[string]map[string]int, len(terms)),
		DocFreqs:      make(map[string]int, len(terms)),
		Lengths:       make(map[string]int),
		Ordinals:      make(map[string]int),
		Docs:          make(map[string]Document),
	}
	for _, term := range terms {
		posting, ok := x.postings[term]
		if !ok {
			continue
		}
		if _, seen := view.Postings[term]; seen {
			continue
		}
		copied := make(map[string]int, len(posting))
		for id, tf := range posting {
			if maxPostings > 0 && len(copied) >= maxPostings {
				break
			}
			copied[id] = tf
			if _, seen := view.Lengths[id]; !seen {
				entry := x.docs[id]
				view.Lengths[id] = entry.length
				view.Ordinals[id] = entry.ordinal
				view.Docs[id] = entry.doc
			}
		}
		view.Postings[term] = copied
		view.DocFreqs[term] = len(posting)
	}
	return view
}
