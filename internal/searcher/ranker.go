package searcher

import (
	"math"
	"sort"

	"github.com/clinilearn/casesearch/internal/index"
)

// Result is a single scored document in a ranked result set.
type Result struct {
	Document index.Document `json:"document"`
	Score    float64        `json:"score"`

	ordinal int
}

// rank scores every candidate in the view with TF-IDF and returns the
// ranked, truncated result set.
//
// idf uses add-one smoothing: ln(documentCount / (df + 1)). When a term
// appears in most of the corpus the idf goes to zero or negative, which
// deliberately suppresses over-common terms; do not clamp it. tf is
// normalized by the document's distinct-term length. A document is a
// candidate only if it contains at least one query term, so documents
// that accumulate no score at all never appear; ties preserve original
// document order.
func rank(view index.QueryView, limit int) []Result {
	scores := make(map[string]float64)
	for term, postings := range view.Postings {
		df := view.DocFreqs[term]
		idf := math.Log(float64(view.DocumentCount) / float64(df+1))
		for id, tf := range postings {
			length := view.Lengths[id]
			if length == 0 {
				continue
			}
			scores[id] += float64(tf) / float64(length) * idf
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{
			Document: view.Docs[id],
			Score:    score,
			ordinal:  view.Ordinals[id],
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ordinal < results[j].ordinal
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
