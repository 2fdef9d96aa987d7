package index

import (
	"sort"

	cserrors "github.com/clinilearn/casesearch/pkg/errors"
)

// SnapshotVersion is the current snapshot schema version. Import rejects
// any other version.
const SnapshotVersion = 1

// Snapshot is the transportable form of an index: the documents in
// insertion order, an explicit (term, postings) list, and the document
// count. It is the unit the persistence adapters serialize.
type Snapshot struct {
	Version       int            `json:"version"`
	Fields        []string       `json:"fields"`
	Documents     []Document     `json:"documents"`
	Terms         []TermPostings `json:"terms"`
	DocumentCount int            `json:"documentCount"`
}

// TermPostings pairs a term with its document-id keyed term frequencies.
type TermPostings struct {
	Term     string         `json:"term"`
	Postings map[string]int `json:"postings"`
}

// Export produces a deterministic snapshot of the index: documents in
// insertion order, terms sorted lexically.
func (x *Index) Export() *Snapshot {
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

	terms := make([]TermPostings, 0, len(x.postings))
	for term, posting := range x.postings {
		copied := make(map[string]int, len(posting))
		for id, tf := range posting {
			copied[id] = tf
		}
		terms = append(terms, TermPostings{Term: term, Postings: copied})
	}
	sort.Slice(terms, func(i, j int) bool {
		return terms[i].Term < terms[j].Term
	})

	return &Snapshot{
		Version:       SnapshotVersion,
		Fields:        append([]string(nil), x.fields...),
		Documents:     docs,
		Terms:         terms,
		DocumentCount: len(docs),
	}
}

// Validate checks the snapshot's internal consistency: schema version,
// document count, unique document ids, and postings that reference only
// known documents. Violations surface as ErrDeserialization.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return cserrors.Deserializationf("unsupported snapshot version %d", s.Version)
	}
	if s.DocumentCount != len(s.Documents) {
		return cserrors.Deserializationf(
			"document count %d does not match %d documents", s.DocumentCount, len(s.Documents))
	}
	ids := make(map[string]struct{}, len(s.Documents))
	for _, doc := range s.Documents {
		if doc.ID == "" {
			return cserrors.Deserializationf("document with empty id")
		}
		if _, dup := ids[doc.ID]; dup {
			return cserrors.Deserializationf("duplicate document id %q", doc.ID)
		}
		ids[doc.ID] = struct{}{}
	}
	for _, tp := range s.Terms {
		if tp.Term == "" {
			return cserrors.Deserializationf("empty term in postings list")
		}
		if len(tp.Postings) == 0 {
			return cserrors.Deserializationf("term %q has no postings", tp.Term)
		}
		for id, tf := range tp.Postings {
			if _, known := ids[id]; !known {
				return cserrors.Deserializationf("term %q posts to unknown document %q", tp.Term, id)
			}
			if tf <= 0 {
				return cserrors.Deserializationf("term %q has non-positive frequency for %q", tp.Term, id)
			}
		}
	}
	return nil
}

// Restore replaces the index contents with the snapshot's, reconstructing
// each document's term set and length from the postings rather than
// re-tokenizing, so the restored index answers every query exactly as
// the exported one did.
func (x *Index) Restore(s *Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	docs := make(map[string]*docEntry, len(s.Documents))
	for i, doc := range s.Documents {
		docs[doc.ID] = &docEntry{
			doc:     doc,
			terms:   make(map[string]struct{}),
			ordinal: i,
		}
	}
	postings := make(map[string]map[string]int, len(s.Terms))
	for _, tp := range s.Terms {
		copied := make(map[string]int, len(tp.Postings))
		for id, tf := range tp.Postings {
			copied[id] = tf
			docs[id].terms[tp.Term] = struct{}{}
		}
		postings[tp.Term] = copied
	}
	for _, entry := range docs {
		entry.length = len(entry.terms)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if len(s.Fields) > 0 {
		x.fields = append([]string(nil), s.Fields...)
	}
	x.postings = postings
	x.docs = docs
	x.nextOrdinal = len(s.Documents)
	return nil
}
