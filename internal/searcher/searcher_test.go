package searcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/clinilearn/casesearch/internal/analyzer"
	"github.com/clinilearn/casesearch/internal/index"
	"github.com/clinilearn/casesearch/pkg/config"
)

var searchFields = []string{"title", "content"}

func newTestSearcher(t *testing.T, docs []index.Document) (*Searcher, *index.Index) {
	t.Helper()
	idx := index.New(analyzer.New(), searchFields)
	idx.Build(docs)
	return New(idx, config.SearchConfig{}), idx
}

func textDoc(id, title, content string) index.Document {
	return index.Document{
		ID:     id,
		Fields: map[string]any{"title": title, "content": content},
	}
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Document.ID
	}
	return ids
}

func TestSearchReturnsDocsContainingTerm(t *testing.T) {
	// "fever" appears in two of three documents, so its smoothed idf is
	// ln(3/3) = 0 and both matches score zero. They are still candidates
	// and must both come back.
	s, _ := newTestSearcher(t, []index.Document{
		textDoc("case-001", "Pediatric fever workup", "Infant presenting with high fever"),
		textDoc("case-002", "Postoperative fever", "Fever on day three after surgery"),
		textDoc("case-003", "Ankle sprain", "Lateral ankle sprain after inversion injury"),
	})

	results := s.Search(context.Background(), "fever", 10)
	if got, want := resultIDs(results), []string{"case-001", "case-002"}; !equalStrings(got, want) {
		t.Fatalf("Search(fever) = %v, want %v", got, want)
	}
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("score for %s = %v, want 0 at idf ln(3/3)", r.Document.ID, r.Score)
		}
	}
}

func TestSearchRanksByNormalizedFrequency(t *testing.T) {
	// Same term, but the short document with the repeated occurrence has
	// a higher tf/length than the long one.
	s, _ := newTestSearcher(t, []index.Document{
		textDoc("long", "Cardiac rehabilitation", "Supervised exercise plan after cardiac surgery with gradual intensity increases"),
		textDoc("short", "Cardiac arrest", "Cardiac arrest"),
		textDoc("other-1", "Ankle sprain", "Inversion injury"),
		textDoc("other-2", "Wound care", "Dressing changes"),
	})

	results := s.Search(context.Background(), "cardiac", 10)
	if got, want := resultIDs(results), []string{"short", "long"}; !equalStrings(got, want) {
		t.Fatalf("Search(cardiac) = %v, want %v", got, want)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	s, _ := newTestSearcher(t, []index.Document{
		textDoc("first", "Migraine management", "Triptan dosing"),
		textDoc("second", "Migraine management", "Triptan dosing"),
		textDoc("third", "Migraine management", "Triptan dosing"),
	})

	results := s.Search(context.Background(), "migraine", 10)
	if got, want := resultIDs(results), []string{"first", "second", "third"}; !equalStrings(got, want) {
		t.Fatalf("tied results = %v, want insertion order %v", got, want)
	}
}

func TestSearchNegativeIdfStillMatches(t *testing.T) {
	// A term present in every document gets idf ln(3/4) < 0. The scores
	// go negative but the documents are still returned.
	s, _ := newTestSearcher(t, []index.Document{
		textDoc("a", "Asthma exacerbation", "Nebulizer treatment"),
		textDoc("b", "Asthma action plan", "Inhaler technique"),
		textDoc("c", "Exercise induced asthma", "Pre-exercise bronchodilator"),
	})

	results := s.Search(context.Background(), "asthma", 10)
	if len(results) != 3 {
		t.Fatalf("got %d results, want all 3", len(results))
	}
	for _, r := range results {
		if r.Score >= 0 {
			t.Errorf("score for %s = %v, want negative at idf ln(3/4)", r.Document.ID, r.Score)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s, _ := newTestSearcher(t, []index.Document{
		textDoc("case-001", "Sepsis bundle", "Early antibiotics"),
	})
	for _, query := range []string{"", "   ", "the of and", "!!!"} {
		results := s.Search(context.Background(), query, 10)
		if results == nil || len(results) != 0 {
			t.Errorf("Search(%q) = %v, want empty non-nil slice", query, results)
		}
	}
}

func TestSearchUnknownTerm(t *testing.T) {
	s, _ := newTestSearcher(t, []index.Document{
		textDoc("case-001", "Sepsis bundle", "Early antibiotics"),
	})
	if results := s.Search(context.Background(), "zebra", 10); len(results) != 0 {
		t.Fatalf("Search(zebra) = %v, want no results", resultIDs(results))
	}
}

func TestSearchDefaultLimit(t *testing.T) {
	docs := make([]index.Document, 0, 15)
	for i := 0; i < 15; i++ {
		docs = append(docs, textDoc(
			fmt.Sprintf("case-%03d", i),
			"Sepsis management",
			fmt.Sprintf("Sepsis protocol variant %d", i),
		))
	}
	s, _ := newTestSearcher(t, docs)

	if got := len(s.Search(context.Background(), "sepsis", 0)); got != 10 {
		t.Fatalf("default limit returned %d results, want 10", got)
	}
	if got := len(s.Search(context.Background(), "sepsis", 4)); got != 4 {
		t.Fatalf("limit 4 returned %d results", got)
	}
}

func TestSearchMaxResultsCap(t *testing.T) {
	docs := make([]index.Document, 0, 12)
	for i := 0; i < 12; i++ {
		docs = append(docs, textDoc(fmt.Sprintf("case-%03d", i), "Stroke pathway", "Thrombolysis window"))
	}
	idx := index.New(analyzer.New(), searchFields)
	idx.Build(docs)
	s := New(idx, config.SearchConfig{MaxResults: 5})

	if got := len(s.Search(context.Background(), "stroke", 50)); got != 5 {
		t.Fatalf("capped search returned %d results, want 5", got)
	}
}

func filterDocs() []index.Document {
	return []index.Document{
		{
			ID:        "case-001",
			Type:      "case",
			Specialty: "cardiology",
			Tags:      []string{"acute", "chest-pain"},
			Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			Fields:    map[string]any{"title": "Acute chest pain", "content": "Crushing chest pain"},
		},
		{
			ID:        "case-002",
			Type:      "case",
			Specialty: "pulmonology",
			Tags:      []string{"chronic"},
			Date:      time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
			Fields:    map[string]any{"title": "Chronic chest tightness", "content": "Exertional chest tightness"},
		},
		{
			ID:        "article-001",
			Type:      "article",
			Specialty: "cardiology",
			Tags:      []string{"imaging", "chest-pain"},
			Date:      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			Fields:    map[string]any{"title": "Chest radiograph interpretation", "content": "Reading the chest film"},
		},
	}
}

func TestSearchWithFilters(t *testing.T) {
	s, _ := newTestSearcher(t, filterDocs())
	ctx := context.Background()

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"no filters", Filters{}, []string{"case-001", "case-002", "article-001"}},
		{"by type", Filters{Type: "case"}, []string{"case-001", "case-002"}},
		{"by specialty", Filters{Specialty: "cardiology"}, []string{"case-001", "article-001"}},
		{"by tag any match", Filters{Tags: []string{"chest-pain", "nonexistent"}}, []string{"case-001", "article-001"}},
		{"tag without matches", Filters{Tags: []string{"nonexistent"}}, []string{}},
		{"min date inclusive", Filters{MinDate: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)},
			[]string{"case-002", "article-001"}},
		{"max date inclusive", Filters{MaxDate: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)},
			[]string{"case-001", "case-002"}},
		{"date window", Filters{
			MinDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			MaxDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		}, []string{"case-002"}},
		{"combined", Filters{Type: "case", Specialty: "cardiology"}, []string{"case-001"}},
		{"filter limit", Filters{Type: "case", Limit: 1}, []string{"case-001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resultIDs(s.SearchWithFilters(ctx, "chest", tt.filters))
			if !equalStrings(got, tt.want) {
				t.Fatalf("SearchWithFilters(%+v) = %v, want %v", tt.filters, got, tt.want)
			}
		})
	}
}

func TestSearchWithFiltersOverscan(t *testing.T) {
	// Nine case documents ranked behind nine articles still surface when
	// filtering by type, because the candidate pass overscans.
	docs := make([]index.Document, 0, 27)
	for i := 0; i < 9; i++ {
		doc := textDoc(fmt.Sprintf("article-%03d", i), "Trauma review", "Trauma trauma trauma")
		doc.Type = "article"
		docs = append(docs, doc)
	}
	for i := 0; i < 9; i++ {
		doc := textDoc(fmt.Sprintf("case-%03d", i), "Trauma case", "Blunt abdominal trauma with hypotension and tachycardia")
		doc.Type = "case"
		docs = append(docs, doc)
	}
	for i := 0; i < 9; i++ {
		doc := textDoc(fmt.Sprintf("guide-%03d", i), "Suturing guide", "Simple interrupted sutures")
		doc.Type = "guide"
		docs = append(docs, doc)
	}
	s, _ := newTestSearcher(t, docs)

	results := s.SearchWithFilters(context.Background(), "trauma", Filters{Type: "case", Limit: 5})
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for _, r := range results {
		if r.Document.Type != "case" {
			t.Fatalf("filtered results contain %s of type %s", r.Document.ID, r.Document.Type)
		}
	}
}

func TestSearchWithFiltersOverscanExceedsMaxResults(t *testing.T) {
	// The candidate pass may need more documents than MaxResults allows a
	// caller to request. With six top-ranked articles and MaxResults 5, a
	// type filter for cases only works if the overscanned candidate list
	// is not clamped back down to the caller-facing cap.
	docs := make([]index.Document, 0, 18)
	for i := 0; i < 6; i++ {
		doc := textDoc(fmt.Sprintf("article-%03d", i), "Trauma review", "Trauma trauma trauma")
		doc.Type = "article"
		docs = append(docs, doc)
	}
	for i := 0; i < 6; i++ {
		doc := textDoc(fmt.Sprintf("case-%03d", i), "Trauma case", "Blunt abdominal trauma with hypotension and tachycardia")
		doc.Type = "case"
		docs = append(docs, doc)
	}
	for i := 0; i < 6; i++ {
		doc := textDoc(fmt.Sprintf("guide-%03d", i), "Suturing guide", "Simple interrupted sutures")
		doc.Type = "guide"
		docs = append(docs, doc)
	}
	idx := index.New(analyzer.New(), searchFields)
	idx.Build(docs)
	s := New(idx, config.SearchConfig{MaxResults: 5})

	results := s.SearchWithFilters(context.Background(), "trauma", Filters{Type: "case", Limit: 5})
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for _, r := range results {
		if r.Document.Type != "case" {
			t.Fatalf("filtered results contain %s of type %s", r.Document.ID, r.Document.Type)
		}
	}

	// The caller-facing cap itself still holds on the unfiltered path.
	if got := s.Search(context.Background(), "trauma", 10); len(got) != 5 {
		t.Fatalf("Search returned %d results, want MaxResults cap of 5", len(got))
	}
}

func TestSearchReflectsIncrementalChanges(t *testing.T) {
	s, idx := newTestSearcher(t, filterDocs())
	ctx := context.Background()

	idx.Remove("case-001")
	if got := resultIDs(s.Search(ctx, "crushing", 10)); len(got) != 0 {
		t.Fatalf("removed document still matches: %v", got)
	}
	idx.Add(textDoc("case-004", "Crushing substernal pain", "Crushing pain radiating to the jaw"))
	if got := resultIDs(s.Search(ctx, "crushing", 10)); !equalStrings(got, []string{"case-004"}) {
		t.Fatalf("Search(crushing) after add = %v, want [case-004]", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func BenchmarkSearch(b *testing.B) {
	docs := make([]index.Document, 0, 1000)
	for i := 0; i < 1000; i++ {
		docs = append(docs, textDoc(
			fmt.Sprintf("case-%04d", i),
			"Emergency department presentation",
			fmt.Sprintf("Patient %d with chest pain, dyspnea, and diaphoresis", i),
		))
	}
	idx := index.New(analyzer.New(), searchFields)
	idx.Build(docs)
	s := New(idx, config.SearchConfig{})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Search(ctx, "chest pain dyspnea", 10)
	}
}
