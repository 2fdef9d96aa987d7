// Package engine wires the analyzer, inverted index, autocomplete index,
// and searcher into the single handle the platform code holds. All
// mutation funnels through the Engine so the two indexes stay in sync and
// the Prometheus gauges track the live index size.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinilearn/casesearch/internal/analyzer"
	"github.com/clinilearn/casesearch/internal/index"
	"github.com/clinilearn/casesearch/internal/searcher"
	"github.com/clinilearn/casesearch/internal/suggest"
	"github.com/clinilearn/casesearch/pkg/config"
	"github.com/clinilearn/casesearch/pkg/metrics"
)

// Engine is the top-level search engine handle.
type Engine struct {
	cfg     *config.Config
	idx     *index.Index
	search  *searcher.Searcher
	ac      *suggest.Autocomplete
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Engine from config. m may be nil when the caller does
// not scrape metrics (tests, one-shot CLI runs).
func New(cfg *config.Config, m *metrics.Metrics) *Engine {
	indexOpts := analyzerOptions(cfg.Engine)
	an := analyzer.New(indexOpts...)

	// The autocomplete vocabulary is surfaced to users as typeahead, so
	// it skips stemming; prefix matches still line up because query
	// prefixes are matched against whole tokens.
	acOpts := append(analyzerOptions(cfg.Engine), analyzer.WithStemmer(analyzer.IdentityStemmer))
	acAnalyzer := analyzer.New(acOpts...)

	idx := index.New(an, cfg.Engine.IndexFields)
	return &Engine{
		cfg:     cfg,
		idx:     idx,
		search:  searcher.New(idx, cfg.Search),
		ac:      suggest.New(acAnalyzer, cfg.Engine.SuggestFields),
		metrics: m,
		logger:  slog.Default().With("component", "engine"),
	}
}

func analyzerOptions(cfg config.EngineConfig) []analyzer.Option {
	opts := []analyzer.Option{}
	if cfg.MinTermLength > 0 {
		opts = append(opts, analyzer.WithMinTermLength(cfg.MinTermLength))
	}
	if len(cfg.ExtraStopWords) > 0 {
		opts = append(opts, analyzer.WithStopWords(cfg.ExtraStopWords...))
	}
	if cfg.DisableStemming {
		opts = append(opts, analyzer.WithStemmer(analyzer.IdentityStemmer))
	}
	return opts
}

// Build indexes the documents from scratch, replacing previous contents
// of both the inverted and autocomplete indexes.
func (e *Engine) Build(docs []index.Document) {
	start := time.Now()
	e.idx.Build(docs)
	e.ac.Build(docs)
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(len(docs)))
	}
	e.updateGauges()
	e.logger.Info("index built",
		"documents", e.idx.DocumentCount(),
		"terms", e.idx.TermCount(),
		"elapsed", time.Since(start),
	)
}

// Rebuild is a full reconstruction from source documents, used when a
// snapshot is unusable or the index has drifted from the document store.
func (e *Engine) Rebuild(docs []index.Document) {
	e.Build(docs)
	if e.metrics != nil {
		e.metrics.RebuildsTotal.Inc()
	}
}

// Update indexes documents incrementally. Existing postings are not
// disturbed; re-sent ids replace their previous version in both indexes.
func (e *Engine) Update(docs ...index.Document) {
	for _, doc := range docs {
		if prev, ok := e.idx.Document(doc.ID); ok {
			e.ac.Remove(prev)
		}
		e.idx.Add(doc)
		e.ac.Add(doc)
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(len(docs)))
	}
	e.updateGauges()
}

// Remove deletes the documents and every posting referencing them,
// returning how many were actually present.
func (e *Engine) Remove(ids ...string) int {
	removed := 0
	for _, id := range ids {
		doc, ok := e.idx.Document(id)
		if !ok {
			continue
		}
		e.idx.Remove(id)
		e.ac.Remove(doc)
		removed++
	}
	if e.metrics != nil {
		e.metrics.DocsRemovedTotal.Add(float64(removed))
	}
	e.updateGauges()
	return removed
}

// Search runs a free-text query, returning up to limit ranked results.
func (e *Engine) Search(ctx context.Context, query string, limit int) []searcher.Result {
	start := time.Now()
	results := e.search.Search(ctx, query, limit)
	e.observeQuery(start, "false", results)
	return results
}

// SearchWithFilters runs a free-text query narrowed by document metadata.
func (e *Engine) SearchWithFilters(ctx context.Context, query string, f searcher.Filters) []searcher.Result {
	start := time.Now()
	results := e.search.SearchWithFilters(ctx, query, f)
	e.observeQuery(start, "true", results)
	return results
}

func (e *Engine) observeQuery(start time.Time, filtered string, results []searcher.Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueryLatency.WithLabelValues(filtered).Observe(time.Since(start).Seconds())
	e.metrics.QueryResultsCount.Observe(float64(len(results)))
	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	} else if filtered == "true" {
		resultType = "filtered"
	}
	e.metrics.QueriesTotal.WithLabelValues(resultType).Inc()
}

// Suggestions returns autocomplete candidates for the prefix, ranked by
// popularity.
func (e *Engine) Suggestions(prefix string, limit int) []suggest.Suggestion {
	if limit <= 0 {
		limit = e.cfg.Suggest.MaxSuggestions
	}
	if e.metrics != nil {
		e.metrics.SuggestionsTotal.WithLabelValues("autocomplete").Inc()
	}
	return e.ac.Suggestions(prefix, limit)
}

// Completions returns term completions for the prefix drawn from the
// main index's dictionary.
func (e *Engine) Completions(prefix string, limit int) []string {
	if limit <= 0 {
		limit = e.cfg.Suggest.MaxCompletions
	}
	if e.metrics != nil {
		e.metrics.SuggestionsTotal.WithLabelValues("completion").Inc()
	}
	return suggest.Completions(e.idx, prefix, limit)
}

// Export produces the transportable snapshot of the inverted index.
func (e *Engine) Export() *index.Snapshot {
	return e.idx.Export()
}

// Import replaces the engine's contents with the snapshot's, rebuilding
// the autocomplete index from the snapshot documents. A malformed
// snapshot fails with ErrDeserialization and leaves the engine unchanged.
func (e *Engine) Import(s *index.Snapshot) error {
	if err := e.idx.Restore(s); err != nil {
		return err
	}
	e.ac.Build(s.Documents)
	e.updateGauges()
	return nil
}

// SaveSnapshot writes the current index to the snapshot file.
func (e *Engine) SaveSnapshot(path string) error {
	err := index.WriteSnapshotFile(path, e.Export())
	e.observeSnapshot("save", err)
	if err == nil {
		e.logger.Info("snapshot saved", "path", path, "documents", e.idx.DocumentCount())
	}
	return err
}

// LoadSnapshot reads a snapshot file and imports it.
func (e *Engine) LoadSnapshot(path string) error {
	s, err := index.ReadSnapshotFile(path)
	if err == nil {
		err = e.Import(s)
	}
	e.observeSnapshot("load", err)
	if err == nil {
		e.logger.Info("snapshot loaded", "path", path, "documents", e.idx.DocumentCount())
	}
	return err
}

func (e *Engine) observeSnapshot(op string, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.SnapshotsTotal.WithLabelValues(op, status).Inc()
}

// DocumentCount returns the number of indexed documents.
func (e *Engine) DocumentCount() int {
	return e.idx.DocumentCount()
}

// TermCount returns the number of distinct indexed terms.
func (e *Engine) TermCount() int {
	return e.idx.TermCount()
}

// Document returns the stored document for id.
func (e *Engine) Document(id string) (index.Document, bool) {
	return e.idx.Document(id)
}

func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexedDocuments.Set(float64(e.idx.DocumentCount()))
	e.metrics.IndexedTerms.Set(float64(e.idx.TermCount()))
}
