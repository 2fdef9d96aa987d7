// Package feed applies the platform's document change stream to a live
// engine. Each Kafka message is an upsert or delete; the handler mutates
// the index incrementally and invalidates the query cache so readers
// never see stale rankings.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinilearn/casesearch/internal/engine"
	"github.com/clinilearn/casesearch/internal/index"
	"github.com/clinilearn/casesearch/pkg/kafka"
)

// Op is a change-event operation.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ChangeEvent is the Kafka payload describing one document change.
// Upserts carry the full document; deletes carry only the id.
type ChangeEvent struct {
	Op         Op             `json:"op"`
	Document   index.Document `json:"document,omitzero"`
	DocumentID string         `json:"document_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ID returns the document id the event applies to.
func (ev ChangeEvent) ID() string {
	if ev.DocumentID != "" {
		return ev.DocumentID
	}
	return ev.Document.ID
}

// Invalidator is called after a change is applied, typically to flush
// the Redis query cache.
type Invalidator func(ctx context.Context) error

// Handler returns a Kafka EventHandler that applies change events to
// the engine. Undecodable events are logged and skipped rather than
// redelivered forever; invalidate may be nil.
func Handler(eng *engine.Engine, invalidate Invalidator) kafka.EventHandler {
	logger := slog.Default().With("component", "change-feed")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ChangeEvent](value)
		if err != nil {
			logger.Error("failed to decode change event", "key", string(key), "error", err)
			return nil
		}
		id := event.ID()
		switch event.Op {
		case OpUpsert:
			if id == "" {
				logger.Error("upsert event without document id", "key", string(key))
				return nil
			}
			// The envelope id wins when the embedded document omits its own.
			event.Document.ID = id
			eng.Update(event.Document)
			logger.Info("document upserted", "doc_id", id)
		case OpDelete:
			removed := eng.Remove(id)
			logger.Info("document removed", "doc_id", id, "was_indexed", removed > 0)
		default:
			logger.Error("unknown change op", "op", string(event.Op), "doc_id", id)
			return nil
		}
		if invalidate != nil {
			if err := invalidate(ctx); err != nil {
				logger.Error("cache invalidation failed", "error", err)
			}
		}
		return nil
	}
}

// Feed consumes the document change topic until its context is cancelled.
type Feed struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New wraps a configured Kafka consumer.
func New(consumer *kafka.Consumer) *Feed {
	return &Feed{
		consumer: consumer,
		logger:   slog.Default().With("component", "change-feed"),
	}
}

// Start blocks consuming messages until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	f.logger.Info("change feed starting")
	return f.consumer.Run(ctx)
}

// Close closes the underlying consumer.
func (f *Feed) Close() error {
	return f.consumer.Close()
}
