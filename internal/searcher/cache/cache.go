// Package cache layers a Redis-backed result cache over the searcher.
// Entries are keyed by normalized query, limit, and filters; concurrent
// misses for the same key are collapsed with singleflight so only one
// caller recomputes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/clinilearn/casesearch/internal/searcher"
	"github.com/clinilearn/casesearch/pkg/config"
	pkgredis "github.com/clinilearn/casesearch/pkg/redis"
	"github.com/clinilearn/casesearch/pkg/resilience"
)

const keyPrefix = "casesearch:query:"

// QueryCache caches ranked result sets in Redis. Cache failures degrade
// to recomputation, never to query failure; a circuit breaker stops
// hammering Redis while it is down.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache over the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result set for the query, if present.
func (c *QueryCache) Get(ctx context.Context, query string, f searcher.Filters) ([]searcher.Result, bool) {
	key := c.buildKey(query, f)
	var data []byte
	notFound := false
	err := c.breaker.Execute(func() error {
		b, err := c.client.Get(ctx, key)
		if err != nil {
			// A nil reply is a healthy backend saying "no entry".
			if pkgredis.IsNilError(err) {
				notFound = true
				return nil
			}
			return err
		}
		data = b
		return nil
	})
	if err != nil || notFound {
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var results []searcher.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return results, true
}

// Set stores a result set under the query's key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, query string, f searcher.Filters, results []searcher.Result) {
	key := c.buildKey(query, f)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result set or computes and caches it.
// The second return reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	f searcher.Filters,
	computeFn func() ([]searcher.Result, error),
) ([]searcher.Result, bool, error) {
	if results, ok := c.Get(ctx, query, f); ok {
		return results, true, nil
	}
	key := c.buildKey(query, f)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if results, ok := c.Get(ctx, query, f); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, f, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]searcher.Result), false, nil
}

// Invalidate drops every cached query result. The feeder calls this after
// applying document changes so stale rankings are not served.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		n, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters for this process.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query string, f searcher.Filters) string {
	terms := strings.Fields(strings.ToLower(query))
	sort.Strings(terms)
	tags := append([]string(nil), f.Tags...)
	sort.Strings(tags)
	raw := fmt.Sprintf("q=%s|type=%s|spec=%s|tags=%s|min=%d|max=%d|limit=%d",
		strings.Join(terms, ","),
		f.Type,
		f.Specialty,
		strings.Join(tags, ","),
		f.MinDate.Unix(),
		f.MaxDate.Unix(),
		f.Limit,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
