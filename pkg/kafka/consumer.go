// Package kafka provides the producer and consumer clients, backed by
// segmentio/kafka-go, that carry document change events between the
// platform and the index maintenance feed. Payloads are JSON; consumers
// decode them through a pluggable EventHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinilearn/casesearch/pkg/config"
)

// EventHandler is invoked once per fetched change event.
type EventHandler func(ctx context.Context, key, value []byte) error

// fetchBackoff spaces out fetch retries while the brokers are unreachable.
const fetchBackoff = 2 * time.Second

// Consumer tails a change topic and hands each event to its handler.
// Offsets are committed only after the handler returns nil, so an event
// that fails transiently is redelivered instead of lost.
type Consumer struct {
	reader  *kafka.Reader
	handler EventHandler
	logger  *slog.Logger
}

// NewConsumer joins the consumer group for topic. Commits are explicit,
// never interval-based, because the redelivery contract depends on them.
func NewConsumer(cfg config.KafkaConfig, topic string, handler EventHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  reader,
		handler: handler,
		logger: slog.Default().With(
			"component", "change-consumer",
			"topic", topic,
			"group", cfg.ConsumerGroup,
		),
	}
}

// Run tails the topic until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("tailing change topic")
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(fetchBackoff):
			case <-ctx.Done():
			}
			continue
		}
		c.apply(ctx, msg)
	}
	c.logger.Info("consumer shutting down", "reason", context.Cause(ctx))
	return c.reader.Close()
}

// apply dispatches one event and commits its offset on success. A
// handler error leaves the offset uncommitted for redelivery.
func (c *Consumer) apply(ctx context.Context, msg kafka.Message) {
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.logger.Error("event not applied, leaving offset for redelivery",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("offset commit failed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals an event payload into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("decoding change event: %w", err)
	}
	return out, nil
}
