// The indexer builds the search index from scratch: it loads every
// searchable document from Postgres, builds the inverted and autocomplete
// indexes, writes the snapshot file, and announces the rebuild on Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clinilearn/casesearch/internal/engine"
	"github.com/clinilearn/casesearch/internal/index"
	"github.com/clinilearn/casesearch/internal/store"
	"github.com/clinilearn/casesearch/pkg/config"
	"github.com/clinilearn/casesearch/pkg/kafka"
	"github.com/clinilearn/casesearch/pkg/logger"
	"github.com/clinilearn/casesearch/pkg/postgres"
	"github.com/clinilearn/casesearch/pkg/resilience"
)

type rebuildEvent struct {
	SnapshotPath string    `json:"snapshot_path"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	RebuiltAt    time.Time `json:"rebuilt_at"`
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	skipKafka := flag.Bool("skip-kafka", false, "do not publish the rebuild event")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index rebuild",
		"snapshot", cfg.Snapshot.Path,
		"fields", cfg.Engine.IndexFields,
	)

	ctx := context.Background()
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	docStore := store.New(pg)
	var docs []index.Document
	err = resilience.Retry(ctx, "list-documents", resilience.RetryConfig{}, func(ctx context.Context) error {
		var listErr error
		docs, listErr = docStore.ListDocuments(ctx)
		return listErr
	})
	if err != nil {
		slog.Error("failed to load documents", "error", err)
		os.Exit(1)
	}

	eng := engine.New(cfg, nil)
	start := time.Now()
	eng.Build(docs)
	if err := eng.SaveSnapshot(cfg.Snapshot.Path); err != nil {
		slog.Error("failed to write snapshot", "error", err)
		os.Exit(1)
	}
	slog.Info("rebuild complete",
		"documents", eng.DocumentCount(),
		"terms", eng.TermCount(),
		"elapsed", time.Since(start),
	)

	if *skipKafka {
		return
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt)
	defer producer.Close()
	event := kafka.Event{
		Key: cfg.Snapshot.Path,
		Value: rebuildEvent{
			SnapshotPath: cfg.Snapshot.Path,
			Documents:    eng.DocumentCount(),
			Terms:        eng.TermCount(),
			RebuiltAt:    time.Now().UTC(),
		},
	}
	err = resilience.Retry(ctx, "publish-rebuild-event", resilience.RetryConfig{}, func(ctx context.Context) error {
		return producer.Publish(ctx, event)
	})
	if err != nil {
		slog.Error("failed to publish rebuild event", "error", err)
		os.Exit(1)
	}
}
