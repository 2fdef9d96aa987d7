// Package searcher executes free-text queries against the inverted
// index: query normalization, TF-IDF scoring, metadata filtering, and
// result truncation.
package searcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinilearn/casesearch/internal/index"
	"github.com/clinilearn/casesearch/pkg/config"
)

// Filters narrows a result set by document metadata. Zero values leave
// the corresponding dimension unconstrained; date bounds are inclusive.
type Filters struct {
	Type      string    `json:"type,omitempty"`
	Specialty string    `json:"specialty,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	MinDate   time.Time `json:"minDate,omitzero"`
	MaxDate   time.Time `json:"maxDate,omitzero"`
	Limit     int       `json:"limit,omitempty"`
}

// Searcher runs queries against one index.
type Searcher struct {
	idx    *index.Index
	cfg    config.SearchConfig
	logger *slog.Logger
}

// New creates a Searcher. Zero config values fall back to a default limit
// of 10 and an overscan factor of 3.
func New(idx *index.Index, cfg config.SearchConfig) *Searcher {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.FilterOverscan <= 0 {
		cfg.FilterOverscan = 3
	}
	return &Searcher{
		idx:    idx,
		cfg:    cfg,
		logger: slog.Default().With("component", "searcher"),
	}
}

// Search tokenizes the query and returns up to limit results ranked by
// TF-IDF. An empty or fully stop-worded query yields an empty result set,
// not an error. limit <= 0 selects the configured default.
func (s *Searcher) Search(ctx context.Context, query string, limit int) []Result {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxResults > 0 && limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	return s.search(ctx, query, limit)
}

// search is the uncapped ranking pipeline. The filtered path calls it
// directly so its enlarged candidate limit is not clamped back down to
// MaxResults before attrition is absorbed.
func (s *Searcher) search(ctx context.Context, query string, limit int) []Result {
	terms := s.idx.Analyze(query)
	if len(terms) == 0 {
		return []Result{}
	}
	start := time.Now()
	view := s.idx.QueryView(terms, s.cfg.MaxPostingsScan)
	results := rank(view, limit)
	s.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"candidates", len(view.Lengths),
		"results", len(results),
		"elapsed", time.Since(start),
	)
	return results
}

// SearchWithFilters scores with an enlarged candidate limit to absorb
// filtering attrition, applies the metadata filters in sequence, and
// truncates to the requested limit.
func (s *Searcher) SearchWithFilters(ctx context.Context, query string, f Filters) []Result {
	limit := f.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxResults > 0 && limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	candidates := s.search(ctx, query, limit*s.cfg.FilterOverscan)

	filtered := make([]Result, 0, len(candidates))
	for _, r := range candidates {
		if !matchesFilters(r.Document, f) {
			continue
		}
		filtered = append(filtered, r)
		if len(filtered) == limit {
			break
		}
	}
	return filtered
}

func matchesFilters(doc index.Document, f Filters) bool {
	if f.Type != "" && doc.Type != f.Type {
		return false
	}
	if f.Specialty != "" && doc.Specialty != f.Specialty {
		return false
	}
	if len(f.Tags) > 0 && !tagsIntersect(doc, f.Tags) {
		return false
	}
	if !f.MinDate.IsZero() && doc.Date.Before(f.MinDate) {
		return false
	}
	if !f.MaxDate.IsZero() && doc.Date.After(f.MaxDate) {
		return false
	}
	return true
}

func tagsIntersect(doc index.Document, tags []string) bool {
	for _, tag := range tags {
		if doc.HasTag(tag) {
			return true
		}
	}
	return false
}
