// Package consumer reads entity change events from Kafka, applies them to
// the lemma index, and announces written entries on the invalidation topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
)

// Applier is the index maintenance step run for every change event.
type Applier interface {
	Apply(ctx context.Context, ev lexicon.ChangeEvent) (indexer.Outcome, error)
}

// IndexConsumer wraps a Kafka consumer to drive index maintenance.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleChange returns a MessageHandler that applies each ChangeEvent.
// Messages that cannot be decoded are logged and dropped; store failures
// are returned so the consumer retries the event before committing it.
func HandleChange(applier Applier) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[lexicon.ChangeEvent](value)
		if err != nil {
			logger.Error("failed to decode change event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if ev.Ref.ID == "" {
			logger.Warn("change event without reference dropped", "key", string(key))
			return nil
		}

		outcome, err := applier.Apply(ctx, ev)
		if err != nil {
			return fmt.Errorf("applying %s %s: %w", ev.Op, ev.Ref, err)
		}
		logger.Info("change applied",
			"op", ev.Op,
			"ref", ev.Ref.Key(),
			"outcome", outcome,
		)
		return nil
	}
}

// InvalidationNotifier publishes InvalidateEvents so API replicas can drop
// stale analysis state.
type InvalidationNotifier struct {
	publisher kafka.Publisher
}

func NewInvalidationNotifier(publisher kafka.Publisher) *InvalidationNotifier {
	return &InvalidationNotifier{publisher: publisher}
}

func (n *InvalidationNotifier) Notify(ctx context.Context, ev lexicon.InvalidateEvent) error {
	return n.publisher.Publish(ctx, kafka.Event{Key: ev.Ref.Key(), Value: ev})
}
