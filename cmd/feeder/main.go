// The feeder keeps a built index current: it loads the snapshot, applies
// document change events from Kafka incrementally, flushes the snapshot
// on a timer, and exposes Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clinilearn/casesearch/internal/engine"
	"github.com/clinilearn/casesearch/internal/feed"
	"github.com/clinilearn/casesearch/internal/searcher/cache"
	"github.com/clinilearn/casesearch/pkg/config"
	cserrors "github.com/clinilearn/casesearch/pkg/errors"
	"github.com/clinilearn/casesearch/pkg/health"
	"github.com/clinilearn/casesearch/pkg/kafka"
	"github.com/clinilearn/casesearch/pkg/logger"
	"github.com/clinilearn/casesearch/pkg/metrics"
	pkgredis "github.com/clinilearn/casesearch/pkg/redis"
	"github.com/clinilearn/casesearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting feeder", "snapshot", cfg.Snapshot.Path)

	m := metrics.New(nil)
	eng := engine.New(cfg, m)
	if err := eng.LoadSnapshot(cfg.Snapshot.Path); err != nil {
		if errors.Is(err, cserrors.ErrDeserialization) {
			slog.Error("snapshot is corrupt, run the indexer to rebuild", "error", err)
		} else {
			slog.Error("failed to load snapshot", "error", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var invalidate feed.Invalidator
	var redisClient *pkgredis.Client
	if redisClient, err = pkgredis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, query cache invalidation disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache := cache.New(redisClient, cfg.Redis)
		invalidate = queryCache.Invalidate
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, newChecker(eng, redisClient, cfg.Snapshot.Path))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}
	go flushLoop(ctx, eng, cfg.Snapshot)

	consumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentChanges,
		feed.Handler(eng, invalidate),
	)
	changeFeed := feed.New(consumer)
	slog.Info("feeder ready, consuming changes",
		"topic", cfg.Kafka.Topics.DocumentChanges,
		"group", cfg.Kafka.ConsumerGroup,
		"documents", eng.DocumentCount(),
	)
	if err := changeFeed.Start(ctx); err != nil {
		slog.Error("change feed error", "error", err)
	}

	slog.Info("flushing snapshot before shutdown")
	if err := eng.SaveSnapshot(cfg.Snapshot.Path); err != nil {
		slog.Error("final snapshot flush failed", "error", err)
	}
	slog.Info("feeder stopped")
}

// flushLoop persists the index periodically so a crash loses at most one
// interval of applied changes.
func flushLoop(ctx context.Context, eng *engine.Engine, cfg config.SnapshotConfig) {
	if cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := resilience.WithTimeout(ctx, cfg.FlushInterval, "snapshot-flush", func(context.Context) error {
				return eng.SaveSnapshot(cfg.Path)
			})
			if err != nil {
				slog.Error("periodic snapshot flush failed", "error", err)
			}
		}
	}
}

// newChecker wires the readiness probes: an empty index or unreachable
// Redis degrades the daemon, an unwritable snapshot directory fails it.
func newChecker(eng *engine.Engine, redisClient *pkgredis.Client, snapshotPath string) *health.Checker {
	checker := health.NewChecker()
	checker.Register("index", func(context.Context) health.ComponentHealth {
		if eng.DocumentCount() == 0 {
			return health.Degraded("index holds no documents")
		}
		return health.Up()
	})
	checker.Register("snapshot", func(context.Context) health.ComponentHealth {
		if _, err := os.Stat(filepath.Dir(snapshotPath)); err != nil {
			return health.Down(fmt.Sprintf("snapshot directory: %v", err))
		}
		return health.Up()
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.Degraded(fmt.Sprintf("redis unreachable: %v", err))
			}
			return health.Up()
		})
	}
	return checker
}
