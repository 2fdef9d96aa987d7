package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/clinilearn/casesearch/internal/searcher"
	"github.com/clinilearn/casesearch/pkg/config"
)

func newKeyCache() *QueryCache {
	return New(nil, config.RedisConfig{CacheTTL: time.Minute})
}

func TestBuildKeyNormalizesQuery(t *testing.T) {
	c := newKeyCache()
	base := c.buildKey("chest pain", searcher.Filters{})

	// Token order and letter case do not produce distinct cache entries.
	for _, query := range []string{"pain chest", "Chest PAIN", "  chest   pain  "} {
		if got := c.buildKey(query, searcher.Filters{}); got != base {
			t.Errorf("buildKey(%q) = %s, want %s", query, got, base)
		}
	}
	if got := c.buildKey("chest pain fever", searcher.Filters{}); got == base {
		t.Error("different queries share a cache key")
	}
}

func TestBuildKeyCoversFilters(t *testing.T) {
	c := newKeyCache()
	base := c.buildKey("chest", searcher.Filters{})

	variants := []searcher.Filters{
		{Type: "case"},
		{Specialty: "cardiology"},
		{Tags: []string{"acute"}},
		{MinDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{MaxDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Limit: 25},
	}
	seen := make(map[string]searcher.Filters)
	for _, f := range variants {
		key := c.buildKey("chest", f)
		if key == base {
			t.Errorf("filters %+v not reflected in cache key", f)
		}
		if prev, dup := seen[key]; dup {
			t.Errorf("filters %+v collide with %+v", f, prev)
		}
		seen[key] = f
	}

	// Tag order is normalized.
	a := c.buildKey("chest", searcher.Filters{Tags: []string{"acute", "imaging"}})
	b := c.buildKey("chest", searcher.Filters{Tags: []string{"imaging", "acute"}})
	if a != b {
		t.Error("tag order produces distinct cache keys")
	}
}

func TestBuildKeyPrefix(t *testing.T) {
	c := newKeyCache()
	key := c.buildKey("anything", searcher.Filters{})
	if !strings.HasPrefix(key, keyPrefix) {
		t.Fatalf("key %s missing %s prefix", key, keyPrefix)
	}
	if len(key) != len(keyPrefix)+32 {
		t.Fatalf("key hash length = %d, want 32 hex chars", len(key)-len(keyPrefix))
	}
}

func TestStatsStartAtZero(t *testing.T) {
	c := newKeyCache()
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Fatalf("Stats() = %d/%d, want 0/0", hits, misses)
	}
}
