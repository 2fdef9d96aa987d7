// The searcher is an operational query tool: it loads the snapshot and
// runs a free-text query, prefix suggestions, or term completions against
// it, optionally caching results in Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clinilearn/casesearch/internal/engine"
	"github.com/clinilearn/casesearch/internal/searcher"
	"github.com/clinilearn/casesearch/internal/searcher/cache"
	"github.com/clinilearn/casesearch/pkg/config"
	"github.com/clinilearn/casesearch/pkg/logger"
	pkgredis "github.com/clinilearn/casesearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	limit := flag.Int("limit", 0, "maximum results (0 = configured default)")
	docType := flag.String("type", "", "filter: document type")
	specialty := flag.String("specialty", "", "filter: specialty")
	tags := flag.String("tags", "", "filter: comma-separated tags")
	minDate := flag.String("min-date", "", "filter: minimum date (YYYY-MM-DD, inclusive)")
	maxDate := flag.String("max-date", "", "filter: maximum date (YYYY-MM-DD, inclusive)")
	suggest := flag.Bool("suggest", false, "treat the argument as an autocomplete prefix")
	complete := flag.Bool("complete", false, "treat the argument as a term-completion prefix")
	useCache := flag.Bool("cache", false, "cache results in redis")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: searcher [flags] <query>")
		os.Exit(2)
	}
	query := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	eng := engine.New(cfg, nil)
	if err := eng.LoadSnapshot(cfg.Snapshot.Path); err != nil {
		slog.Error("failed to load snapshot", "path", cfg.Snapshot.Path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch {
	case *suggest:
		for _, s := range eng.Suggestions(query, 0) {
			fmt.Printf("%-24s %4d  %s\n", s.Term, s.Popularity, strings.Join(s.DocumentIDs, ","))
		}
	case *complete:
		for _, term := range eng.Completions(query, 0) {
			fmt.Println(term)
		}
	default:
		runQuery(ctx, cfg, eng, query, *limit, *docType, *specialty, *tags, *minDate, *maxDate, *useCache)
	}
}

func runQuery(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	query string,
	limit int,
	docType, specialty, tags, minDate, maxDate string,
	useCache bool,
) {
	filters := searcher.Filters{
		Type:      docType,
		Specialty: specialty,
		Limit:     limit,
	}
	if tags != "" {
		filters.Tags = strings.Split(tags, ",")
	}
	filters.MinDate = parseDate(minDate)
	filters.MaxDate = parseDate(maxDate)

	compute := func() ([]searcher.Result, error) {
		return eng.SearchWithFilters(ctx, query, filters), nil
	}

	var (
		results []searcher.Result
		cached  bool
		err     error
	)
	if useCache {
		redisClient, redisErr := pkgredis.NewClient(cfg.Redis)
		if redisErr != nil {
			slog.Warn("redis unavailable, running uncached", "error", redisErr)
			results, _ = compute()
		} else {
			defer redisClient.Close()
			queryCache := cache.New(redisClient, cfg.Redis)
			results, cached, err = queryCache.GetOrCompute(ctx, query, filters, compute)
			if err != nil {
				slog.Error("query failed", "error", err)
				os.Exit(1)
			}
		}
	} else {
		results, _ = compute()
	}

	slog.Debug("query done", "results", len(results), "cached", cached)
	for i, r := range results {
		fmt.Printf("%2d. %-32s %8.4f\n", i+1, r.Document.ID, r.Score)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid date %q: %v\n", s, err)
		os.Exit(2)
	}
	return t
}
